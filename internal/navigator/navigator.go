package navigator

import (
	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/dgallion1/lexview/internal/search"
)

// State is the navigator's position state.
type State string

const (
	StateEmpty      State = "empty"
	StatePositioned State = "positioned"
)

// Collect returns every match of term in the section tree, in pre-order: for
// each section its articles (each article's own text before its
// sub-articles), then its subsections.
func Collect(sections []lawdoc.Section, term string) []lawdoc.Match {
	var m search.Matcher
	return CollectWith(&m, sections, term)
}

// CollectWith is Collect with a caller-owned matcher.
func CollectWith(m *search.Matcher, sections []lawdoc.Section, term string) []lawdoc.Match {
	if search.Blank(term) {
		return nil
	}
	var matches []lawdoc.Match
	lawdoc.WalkArticles(sections, func(a *lawdoc.Article) bool {
		n := m.Count(a.Text, term)
		for i := 0; i < n; i++ {
			matches = append(matches, lawdoc.Match{ID: search.MatchID(a.ID, i), ArticleID: a.ID})
		}
		return true
	})
	return matches
}

// Navigator owns the current match list and the cursor into it. It is not
// safe for concurrent use; the view controller serializes access.
type Navigator struct {
	matches []lawdoc.Match
	cursor  int
	focus   func(matchID string)
	lastID  string
}

// New returns an empty navigator.
func New() *Navigator {
	return &Navigator{cursor: -1}
}

// OnFocus registers fn to be called whenever the current match id changes.
// An empty id means there is no current match.
func (n *Navigator) OnFocus(fn func(matchID string)) {
	n.focus = fn
}

// Reset replaces the match list and moves the cursor to the first match, or
// to none when the list is empty.
func (n *Navigator) Reset(matches []lawdoc.Match) {
	n.matches = matches
	if len(matches) == 0 {
		n.cursor = -1
	} else {
		n.cursor = 0
	}
	n.notify()
}

// Clear is Reset with no matches.
func (n *Navigator) Clear() { n.Reset(nil) }

// Next advances the cursor, wrapping to the first match.
func (n *Navigator) Next() {
	if len(n.matches) == 0 {
		return
	}
	n.cursor = (n.cursor + 1) % len(n.matches)
	n.notify()
}

// Previous moves the cursor back, wrapping to the last match.
func (n *Navigator) Previous() {
	if len(n.matches) == 0 {
		return
	}
	n.cursor = (n.cursor - 1 + len(n.matches)) % len(n.matches)
	n.notify()
}

func (n *Navigator) State() State {
	if len(n.matches) == 0 {
		return StateEmpty
	}
	return StatePositioned
}

// Cursor is the current index, or -1 when empty.
func (n *Navigator) Cursor() int { return n.cursor }

func (n *Navigator) Len() int { return len(n.matches) }

// Matches returns a copy of the current match list.
func (n *Navigator) Matches() []lawdoc.Match {
	out := make([]lawdoc.Match, len(n.matches))
	copy(out, n.matches)
	return out
}

// CurrentMatchID returns the id at the cursor.
func (n *Navigator) CurrentMatchID() (string, bool) {
	if n.cursor < 0 || n.cursor >= len(n.matches) {
		return "", false
	}
	return n.matches[n.cursor].ID, true
}

func (n *Navigator) notify() {
	id, _ := n.CurrentMatchID()
	if id == n.lastID {
		return
	}
	n.lastID = id
	if n.focus != nil {
		n.focus(id)
	}
}

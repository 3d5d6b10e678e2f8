package search

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Span is one occurrence of a term, as byte offsets into the NFC form of the text.
type Span struct {
	Start  int
	Length int
}

// End returns the offset just past the match.
func (s Span) End() int { return s.Start + s.Length }

// Segment is a run of text that either matched the term or did not.
// Ordinal counts matches within the highlighted text, starting at 0; it is -1
// for literal segments.
type Segment struct {
	Text    string
	Match   bool
	Ordinal int
}

// Blank reports whether a term is empty or whitespace only. Blank terms never match.
func Blank(term string) bool {
	return strings.TrimSpace(term) == ""
}

// Normalize returns the NFC form used for all matching.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Pattern compiles term into a case-insensitive pattern that matches the term
// literally. It returns nil for a blank term.
func Pattern(term string) *regexp.Regexp {
	if Blank(term) {
		return nil
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(Normalize(term)))
	if err != nil {
		return nil
	}
	return re
}

// LocateMatches returns all non-overlapping, case-insensitive occurrences of
// term in text, left to right.
func LocateMatches(text, term string) []Span {
	return Find(Pattern(term), Normalize(text), term)
}

// Highlight splits text into literal and matched segments.
func Highlight(text, term string) []Segment {
	return split(Pattern(term), Normalize(text), term)
}

// MatchID is the stable element id of the ordinal-th match inside an article.
func MatchID(articleID string, ordinal int) string {
	return fmt.Sprintf("match-%s-%d", articleID, ordinal)
}

// Find returns the spans of text matched by re, a pattern built by Pattern
// for term. (?i) also folds characters such as the long s "ſ" onto "s"; a
// span is kept only when it lower-cases to the lower-cased term, and the
// search resumes one rune past a rejected span.
func Find(re *regexp.Regexp, text, term string) []Span {
	if re == nil || text == "" {
		return nil
	}
	want := strings.ToLower(Normalize(term))
	var spans []Span
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && strings.ToLower(text[start:end]) == want {
			spans = append(spans, Span{Start: start, Length: end - start})
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	return spans
}

func split(re *regexp.Regexp, text, term string) []Segment {
	spans := Find(re, text, term)
	if len(spans) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text, Ordinal: -1}}
	}
	segs := make([]Segment, 0, 2*len(spans)+1)
	pos := 0
	for i, sp := range spans {
		if sp.Start > pos {
			segs = append(segs, Segment{Text: text[pos:sp.Start], Ordinal: -1})
		}
		segs = append(segs, Segment{Text: text[sp.Start:sp.End()], Match: true, Ordinal: i})
		pos = sp.End()
	}
	if pos < len(text) {
		segs = append(segs, Segment{Text: text[pos:], Ordinal: -1})
	}
	return segs
}

// Matcher reuses the compiled pattern while the term stays the same, which is
// the common case when a whole document tree is searched for one keystroke.
type Matcher struct {
	mu   sync.Mutex
	term string
	re   *regexp.Regexp
}

func (m *Matcher) pattern(term string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.re == nil || m.term != term {
		m.term = term
		m.re = Pattern(term)
	}
	return m.re
}

// LocateMatches is the cached form of the package-level LocateMatches.
func (m *Matcher) LocateMatches(text, term string) []Span {
	return Find(m.pattern(term), Normalize(text), term)
}

// Highlight is the cached form of the package-level Highlight.
func (m *Matcher) Highlight(text, term string) []Segment {
	return split(m.pattern(term), Normalize(text), term)
}

// Count returns the number of matches of term in text.
func (m *Matcher) Count(text, term string) int {
	return len(m.LocateMatches(text, term))
}

package markup

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/dgallion1/lexview/internal/search"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ProcessingError reports that raw markup could not be highlighted. Callers
// fall back to the unmodified markup.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("markup %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// MarkClass is the class of injected highlight wrappers.
const MarkClass = "match"

// Highlight wraps every case-insensitive occurrence of term in the text of
// raw with <mark>. It returns raw unchanged for a blank term, when nothing
// matches, or when the markup cannot be processed.
func Highlight(raw, term string) string {
	out, err := HighlightErr(raw, term)
	if err != nil {
		return raw
	}
	return out
}

// HighlightErr is Highlight with the processing failure exposed.
func HighlightErr(raw, term string) (string, error) {
	out, _, err := HighlightCount(raw, term)
	return out, err
}

// HighlightCount is HighlightErr that also reports how many wrappers it
// injected. Marks already present in raw are not counted.
func HighlightCount(raw, term string) (out string, n int, err error) {
	re := search.Pattern(term)
	if re == nil || raw == "" {
		return raw, 0, nil
	}

	defer func() {
		if r := recover(); r != nil {
			out, n, err = raw, 0, &ProcessingError{Op: "highlight", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var root *html.Node
	if isFullDocument(raw) {
		root, err = html.Parse(strings.NewReader(raw))
		if err != nil {
			return raw, 0, &ProcessingError{Op: "parse", Err: err}
		}
	} else {
		nodes, err := html.ParseFragment(strings.NewReader(raw), &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Body,
			Data:     "body",
		})
		if err != nil {
			return raw, 0, &ProcessingError{Op: "parse", Err: err}
		}
		// Hold the fragment under a container so top-level text nodes have a parent.
		root = &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
		for _, c := range nodes {
			root.AppendChild(c)
		}
	}

	if err := checkElements(raw, root); err != nil {
		return raw, 0, err
	}
	n = wrapMatches(root, re, term)
	if n == 0 {
		return raw, 0, nil
	}

	var sb strings.Builder
	if root.Type == html.DocumentNode {
		err = html.Render(&sb, root)
	} else {
		for c := root.FirstChild; c != nil && err == nil; c = c.NextSibling {
			err = html.Render(&sb, c)
		}
	}
	if err != nil {
		return raw, 0, &ProcessingError{Op: "render", Err: err}
	}
	return sb.String(), n, nil
}

// checkElements fails when parsing dropped a start tag of raw, as happens to
// table rows and cells outside a table. Highlighting such a tree would change
// the document structure.
func checkElements(raw string, root *html.Node) error {
	want := make(map[string]int)
	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			want[string(name)]++
		}
	}

	var count func(*html.Node)
	count = func(n *html.Node) {
		if n.Type == html.ElementNode {
			want[strings.ToLower(n.Data)]--
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			count(c)
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		count(c)
	}

	for name, missing := range want {
		if missing > 0 {
			return &ProcessingError{Op: "parse", Err: fmt.Errorf("%d <%s> element(s) dropped by the parser", missing, name)}
		}
	}
	return nil
}

func isFullDocument(raw string) bool {
	head := strings.ToLower(strings.TrimSpace(raw))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html") || strings.Contains(head, "<body")
}

// skipped elements never have their text matched or altered.
func skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Textarea, atom.Mark, atom.Title:
		return true
	}
	return false
}

// wrapMatches walks the tree and splits matching text leaves. It returns the
// number of wrappers injected.
func wrapMatches(n *html.Node, re *regexp.Regexp, term string) int {
	if n.Type == html.ElementNode && skipped(n) {
		return 0
	}
	if n.Type == html.TextNode {
		return wrapText(n, re, term)
	}
	count := 0
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		count += wrapMatches(c, re, term)
		c = next
	}
	return count
}

func wrapText(n *html.Node, re *regexp.Regexp, term string) int {
	if n.Parent == nil {
		return 0
	}
	text := search.Normalize(n.Data)
	spans := search.Find(re, text, term)
	if len(spans) == 0 {
		return 0
	}

	parent := n.Parent
	pos := 0
	count := 0
	for _, sp := range spans {
		if sp.Start > pos {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[pos:sp.Start]}, n)
		}
		mark := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Mark,
			Data:     "mark",
			Attr:     []html.Attribute{{Key: "class", Val: MarkClass}},
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: text[sp.Start:sp.End()]})
		parent.InsertBefore(mark, n)
		pos = sp.End()
		count++
	}
	if pos < len(text) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[pos:]}, n)
	}
	parent.RemoveChild(n)
	return count
}

// Highlighter memoizes the most recent result so that re-rendering the same
// markup for an unchanged term does not re-parse it.
type Highlighter struct {
	Log *slog.Logger

	mu   sync.Mutex
	raw  string
	term string
	out  string
	ok   bool
}

// Highlight returns the highlighted markup, reusing the previous result when
// both inputs are unchanged.
func (h *Highlighter) Highlight(raw, term string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ok && h.raw == raw && h.term == term {
		return h.out
	}
	out, err := HighlightErr(raw, term)
	if err != nil {
		if h.Log != nil {
			h.Log.Warn("markup highlight failed, showing original", "error", err)
		}
		out = raw
	}
	h.raw, h.term, h.out, h.ok = raw, term, out, true
	return out
}

// Reset drops the memoized result.
func (h *Highlighter) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raw, h.term, h.out, h.ok = "", "", "", false
}

// Package render turns structured legal documents into presentation trees.
// Trees are golang.org/x/net/html nodes so the shell can serialize them with
// html.Render or inspect them directly.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/dgallion1/lexview/internal/search"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxHeadingDepth is the deepest section level with its own heading weight.
// Deeper sections render like this level.
const MaxHeadingDepth = 5

const (
	ClassMatch   = "match"
	ClassCurrent = "match match-current"
)

// Options are the search and readability parameters shared by every node of
// one render pass.
type Options struct {
	FontSize     int
	Term         string
	EmphasizedID string

	// Matcher is optional; a shared one avoids recompiling the term per article.
	Matcher *search.Matcher
}

func (o Options) highlight(text string) []search.Segment {
	if o.Matcher != nil {
		return o.Matcher.Highlight(text, o.Term)
	}
	return search.Highlight(text, o.Term)
}

// Article renders one article, its text with highlighted matches, then each
// sub-article in order.
func Article(a lawdoc.Article, opts Options) *html.Node {
	div := element(atom.Div,
		attr("class", "article"),
		attr("id", "article-container-"+a.ID),
	)

	num := element(atom.H4, attr("class", "article-number"), fontStyle(opts.FontSize, 1.1))
	num.AppendChild(textNode(a.Number))
	div.AppendChild(num)

	p := element(atom.P, attr("class", "article-text"), fontStyle(opts.FontSize, 1))
	for _, seg := range opts.highlight(a.Text) {
		if !seg.Match {
			p.AppendChild(textNode(seg.Text))
			continue
		}
		id := search.MatchID(a.ID, seg.Ordinal)
		class := ClassMatch
		if id == opts.EmphasizedID {
			class = ClassCurrent
		}
		mark := element(atom.Mark, attr("id", id), attr("class", class))
		mark.AppendChild(textNode(seg.Text))
		p.AppendChild(mark)
	}
	div.AppendChild(p)

	for _, sub := range a.Subsections {
		div.AppendChild(Article(sub, opts))
	}
	return div
}

// HeadingLevel maps a section depth (1 for top level) to an h1..h6 level.
func HeadingLevel(depth int) int {
	return min(max(depth, 1)+1, 6)
}

// HeadingScale is the font-size multiplier for a section title at depth.
func HeadingScale(depth int) float64 {
	d := min(max(depth, 1), MaxHeadingDepth)
	return 1.5 - float64(d)*0.1
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// Section renders a section title, its articles, then its subsections one
// level deeper.
func Section(s lawdoc.Section, depth int, opts Options) *html.Node {
	class := "section"
	if depth > 1 {
		class = "section nested"
	}
	div := element(atom.Div, attr("class", class), attr("id", "section-"+s.ID))

	h := element(headingAtoms[HeadingLevel(depth)-1], attr("class", "section-title"), fontStyle(opts.FontSize, HeadingScale(depth)))
	h.AppendChild(textNode(s.Title))
	div.AppendChild(h)

	for _, a := range s.Articles {
		div.AppendChild(Article(a, opts))
	}
	for _, sub := range s.Subsections {
		div.AppendChild(Section(sub, depth+1, opts))
	}
	return div
}

// Header renders the document's full name and optional description.
func Header(doc *lawdoc.Document, fontSize int) []*html.Node {
	h := element(atom.H1, attr("class", "document-title"), fontStyle(fontSize, 1.6))
	h.AppendChild(textNode(doc.FullName))
	nodes := []*html.Node{h}
	if doc.Description != "" {
		p := element(atom.P, attr("class", "document-description"), fontStyle(fontSize, 0.9))
		p.AppendChild(textNode(doc.Description))
		nodes = append(nodes, p)
	}
	return nodes
}

// Document renders a structured document in full.
func Document(doc *lawdoc.Document, opts Options) *html.Node {
	root := element(atom.Div, attr("class", "content-view"), attr("id", "content-view-main"), fontStyle(opts.FontSize, 1))
	for _, n := range Header(doc, opts.FontSize) {
		root.AppendChild(n)
	}
	if len(doc.Content) == 0 {
		root.AppendChild(Message("Contenido no disponible para este documento.", "notice"))
		return root
	}
	for _, s := range doc.Content {
		root.AppendChild(Section(s, 1, opts))
	}
	return root
}

// Message renders a one-line status paragraph (loading, error, empty).
func Message(text, class string) *html.Node {
	p := element(atom.P, attr("class", "message "+class))
	p.AppendChild(textNode(text))
	return p
}

// WriteHTML serializes nodes in order.
func WriteHTML(w io.Writer, nodes ...*html.Node) error {
	for _, n := range nodes {
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("render html: %w", err)
		}
	}
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func fontStyle(size int, scale float64) html.Attribute {
	px := math.Round(float64(size)*scale*100) / 100
	return attr("style", "font-size: "+strconv.FormatFloat(px, 'f', -1, 64)+"px")
}

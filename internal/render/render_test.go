package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"golang.org/x/net/html"
)

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findByID(c, id); f != nil {
			return f
		}
	}
	return nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collect(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func TestArticle_HighlightsWithStableIDs(t *testing.T) {
	a := lawdoc.Article{ID: "art1", Number: "Art 1", Text: "The cat sat on the Cat mat"}
	n := Article(a, Options{FontSize: 16, Term: "cat", EmphasizedID: "match-art1-1"})

	marks := collect(n, "mark")
	if len(marks) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(marks))
	}
	if attrVal(marks[0], "id") != "match-art1-0" || attrVal(marks[0], "class") != ClassMatch {
		t.Errorf("unexpected first mark: id=%q class=%q", attrVal(marks[0], "id"), attrVal(marks[0], "class"))
	}
	if attrVal(marks[1], "id") != "match-art1-1" || attrVal(marks[1], "class") != ClassCurrent {
		t.Errorf("expected second mark to be emphasized, got class %q", attrVal(marks[1], "class"))
	}
	if textOf(marks[1]) != "Cat" {
		t.Errorf("expected original case preserved, got %q", textOf(marks[1]))
	}
}

func TestArticle_OrdinalsAreLocalToEachArticle(t *testing.T) {
	a := lawdoc.Article{
		ID: "p", Number: "Art 2", Text: "pena y pena",
		Subsections: []lawdoc.Article{{ID: "c", Number: "inciso 1", Text: "otra pena"}},
	}
	n := Article(a, Options{FontSize: 16, Term: "pena"})
	for _, id := range []string{"match-p-0", "match-p-1", "match-c-0"} {
		if findByID(n, id) == nil {
			t.Errorf("expected element %q", id)
		}
	}
	if findByID(n, "match-c-1") != nil {
		t.Error("child ordinal must restart at 0")
	}
}

func TestArticle_SubArticlesFollowParentText(t *testing.T) {
	a := lawdoc.Article{
		ID: "a", Number: "1", Text: "parent",
		Subsections: []lawdoc.Article{
			{ID: "b", Number: "1.a", Text: "first"},
			{ID: "c", Number: "1.b", Text: "second"},
		},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, Article(a, Options{FontSize: 16})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	iParent, iFirst, iSecond := strings.Index(out, "parent"), strings.Index(out, "first"), strings.Index(out, "second")
	if !(iParent < iFirst && iFirst < iSecond) {
		t.Errorf("expected parent, first, second order in %q", out)
	}
	if strings.Contains(out, "<mark") {
		t.Error("expected no marks without a term")
	}
}

func TestArticle_EscapesText(t *testing.T) {
	a := lawdoc.Article{ID: "x", Number: "<b>", Text: "a < b & c"}
	var buf bytes.Buffer
	WriteHTML(&buf, Article(a, Options{FontSize: 16, Term: "<"}))
	out := buf.String()
	if strings.Contains(out, "<b>") {
		t.Errorf("expected number to be escaped, got %q", out)
	}
	if !strings.Contains(out, `<mark id="match-x-0" class="match">&lt;</mark>`) {
		t.Errorf("expected escaped highlighted '<', got %q", out)
	}
}

func TestHeadingLevelAndScale(t *testing.T) {
	tests := []struct {
		depth int
		level int
		scale float64
	}{
		{1, 2, 1.4},
		{2, 3, 1.3},
		{4, 5, 1.1},
		{5, 6, 1.0},
		{6, 6, 1.0},
		{12, 6, 1.0},
	}
	for _, tt := range tests {
		if got := HeadingLevel(tt.depth); got != tt.level {
			t.Errorf("depth %d: expected h%d, got h%d", tt.depth, tt.level, got)
		}
		if got := HeadingScale(tt.depth); got < tt.scale-1e-9 || got > tt.scale+1e-9 {
			t.Errorf("depth %d: expected scale %v, got %v", tt.depth, tt.scale, got)
		}
	}
}

func TestSection_OrderAndNesting(t *testing.T) {
	s := lawdoc.Section{
		ID: "s1", Title: "Título I",
		Articles: []lawdoc.Article{{ID: "a1", Number: "Art 1", Text: "uno"}},
		Subsections: []lawdoc.Section{{
			ID: "s2", Title: "Párrafo 1",
			Articles: []lawdoc.Article{{ID: "a2", Number: "Art 2", Text: "dos"}},
		}},
	}
	n := Section(s, 1, Options{FontSize: 20})

	if h := collect(n, "h2"); len(h) != 1 || textOf(h[0]) != "Título I" {
		t.Fatalf("expected top-level title as h2")
	}
	if got := attrVal(collect(n, "h2")[0], "style"); got != "font-size: 28px" {
		t.Errorf("expected 28px heading, got %q", got)
	}
	if h := collect(n, "h3"); len(h) != 1 || textOf(h[0]) != "Párrafo 1" {
		t.Fatalf("expected nested title as h3")
	}
	nested := findByID(n, "section-s2")
	if nested == nil || attrVal(nested, "class") != "section nested" {
		t.Error("expected nested section class")
	}

	var buf bytes.Buffer
	WriteHTML(&buf, n)
	out := buf.String()
	if !(strings.Index(out, "Título I") < strings.Index(out, "uno") && strings.Index(out, "uno") < strings.Index(out, "Párrafo 1")) {
		t.Errorf("expected title, articles, subsections order: %q", out)
	}
}

func TestSection_DeepNestingCapsHeading(t *testing.T) {
	s := lawdoc.Section{ID: "leaf", Title: "deep"}
	for i := 0; i < 8; i++ {
		s = lawdoc.Section{ID: "s" + string(rune('a'+i)), Title: "level", Subsections: []lawdoc.Section{s}}
	}
	n := Section(s, 1, Options{FontSize: 10})
	leaf := findByID(n, "section-leaf")
	if leaf == nil {
		t.Fatal("expected deepest section to be rendered")
	}
	h := leaf.FirstChild
	if h.Data != "h6" {
		t.Errorf("expected deepest heading h6, got %s", h.Data)
	}
	if got := attrVal(h, "style"); got != "font-size: 10px" {
		t.Errorf("expected minimum heading size 10px, got %q", got)
	}
}

func TestDocument_ScenarioCatInCap1(t *testing.T) {
	doc := &lawdoc.Document{
		ID: "d", FullName: "Doc", Description: "desc",
		Content: []lawdoc.Section{{
			ID: "cap1", Title: "Cap 1",
			Articles: []lawdoc.Article{{ID: "art1", Number: "Art 1", Text: "The cat sat"}},
		}},
	}
	n := Document(doc, Options{FontSize: 16, Term: "cat", EmphasizedID: "match-art1-0"})
	m := findByID(n, "match-art1-0")
	if m == nil {
		t.Fatal("expected match element")
	}
	if attrVal(m, "class") != ClassCurrent {
		t.Errorf("expected emphasized match, got class %q", attrVal(m, "class"))
	}
	if h := collect(n, "h1"); len(h) != 1 || attrVal(h[0], "style") != "font-size: 25.6px" {
		t.Error("expected document title at 1.6x font size")
	}
}

func TestDocument_EmptyContent(t *testing.T) {
	n := Document(&lawdoc.Document{ID: "d", FullName: "Vacío"}, Options{FontSize: 16})
	if !strings.Contains(textOf(n), "Contenido no disponible") {
		t.Error("expected unavailable-content message")
	}
}

// Package loader turns statute source files into structured sections.
// Headings become sections; paragraphs that open with an article label
// ("Artículo 5°.-", "Art. 12") start a new article; list items become
// sub-articles of the current article.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/lexview/internal/lawdoc"
)

// Loader converts a source file into sections. idPrefix scopes the generated
// section and article ids so they are unique across the catalog.
type Loader interface {
	Load(r io.Reader, idPrefix string) ([]lawdoc.Section, error)
}

// SupportedExtensions lists the source formats the catalog accepts.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".docx":     true,
	".html":     true,
	".htm":      true,
}

// ForFile returns the loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return &MarkdownLoader{Title: titleFromFilename(filename)}, nil
	case ".txt":
		return &TextLoader{Title: titleFromFilename(filename)}, nil
	case ".docx":
		return &DOCXLoader{Title: titleFromFilename(filename)}, nil
	case ".html", ".htm":
		return &HTMLLoader{Title: titleFromFilename(filename)}, nil
	default:
		return nil, fmt.Errorf("unsupported source extension: %s", ext)
	}
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var articleLabel = regexp.MustCompile(`^(?i)((?:art[íi]culo|art\.?)\s*\d+[°º]?(?:\s*(?:bis|ter|qu[áa]ter)\b)?)\s*[.:\-–]*\s*`)

// SplitArticleLabel separates a leading article label from the paragraph body.
func SplitArticleLabel(text string) (label, body string, ok bool) {
	m := articleLabel.FindStringSubmatchIndex(text)
	if m == nil {
		return "", text, false
	}
	label = strings.TrimSpace(text[m[2]:m[3]])
	body = strings.TrimSpace(text[m[1]:])
	return label, body, true
}

type sectionNode struct {
	title    string
	level    int
	articles []*articleNode
	children []*sectionNode
}

type articleNode struct {
	number string
	text   strings.Builder
	subs   []*articleNode
}

// builder assembles sections with a heading stack. The root collects text
// that appears before the first heading.
type builder struct {
	title string
	root  *sectionNode
	stack []*sectionNode
	cur   *articleNode
}

func newBuilder(title string) *builder {
	root := &sectionNode{title: title}
	return &builder{title: title, root: root, stack: []*sectionNode{root}}
}

func (b *builder) top() *sectionNode { return b.stack[len(b.stack)-1] }

func (b *builder) heading(level int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	node := &sectionNode{title: title, level: level}
	for len(b.stack) > 1 && b.top().level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.top()
	parent.children = append(parent.children, node)
	b.stack = append(b.stack, node)
	b.cur = nil
}

func (b *builder) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if label, body, ok := SplitArticleLabel(text); ok {
		a := &articleNode{number: label}
		a.text.WriteString(body)
		sec := b.top()
		sec.articles = append(sec.articles, a)
		b.cur = a
		return
	}
	if b.cur == nil {
		a := &articleNode{}
		a.text.WriteString(text)
		sec := b.top()
		sec.articles = append(sec.articles, a)
		b.cur = a
		return
	}
	if b.cur.text.Len() > 0 {
		b.cur.text.WriteString("\n\n")
	}
	b.cur.text.WriteString(text)
}

func (b *builder) listItem(marker, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.cur == nil {
		b.paragraph(text)
		return
	}
	b.cur.subs = append(b.cur.subs, &articleNode{number: marker})
	b.cur.subs[len(b.cur.subs)-1].text.WriteString(text)
}

// finish converts the tree to sections, assigning ids in document order.
func (b *builder) finish(idPrefix string) []lawdoc.Section {
	var secN, artN int
	var convArticle func(a *articleNode) lawdoc.Article
	convArticle = func(a *articleNode) lawdoc.Article {
		artN++
		out := lawdoc.Article{
			ID:     fmt.Sprintf("%s-art-%d", idPrefix, artN),
			Number: a.number,
			Text:   a.text.String(),
		}
		for _, s := range a.subs {
			out.Subsections = append(out.Subsections, convArticle(s))
		}
		return out
	}
	var convSection func(s *sectionNode) lawdoc.Section
	convSection = func(s *sectionNode) lawdoc.Section {
		secN++
		out := lawdoc.Section{ID: fmt.Sprintf("%s-sec-%d", idPrefix, secN), Title: s.title}
		for _, a := range s.articles {
			out.Articles = append(out.Articles, convArticle(a))
		}
		for _, c := range s.children {
			out.Subsections = append(out.Subsections, convSection(c))
		}
		return out
	}

	var sections []lawdoc.Section
	if len(b.root.articles) > 0 {
		preamble := &sectionNode{title: b.title, articles: b.root.articles}
		sections = append(sections, convSection(preamble))
	}
	for _, c := range b.root.children {
		sections = append(sections, convSection(c))
	}
	return sections
}

var listMarker = regexp.MustCompile(`^(\d+|[a-zñ])\)\s+`)

// splitListMarker recognizes inline enumerations such as "a) texto".
func splitListMarker(text string) (marker, body string, ok bool) {
	m := listMarker.FindStringSubmatchIndex(text)
	if m == nil {
		return "", text, false
	}
	return text[m[2]:m[3]] + ")", strings.TrimSpace(text[m[1]:]), true
}

// block routes a plain paragraph either to the current article as a
// sub-article or to paragraph handling.
func (b *builder) block(text string) {
	text = strings.TrimSpace(text)
	if marker, body, ok := splitListMarker(text); ok && b.cur != nil {
		b.listItem(marker, body)
		return
	}
	b.paragraph(text)
}

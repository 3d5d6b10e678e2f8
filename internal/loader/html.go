package loader

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"golang.org/x/net/html"
)

// HTMLLoader handles statute pages saved as HTML. h1-h6 open sections;
// paragraphs and list items feed the article builder.
type HTMLLoader struct {
	Title string
}

func (l *HTMLLoader) Load(r io.Reader, idPrefix string) ([]lawdoc.Section, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := l.Title
	if t := findTitle(doc); t != "" {
		title = t
	}
	b := newBuilder(title)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				b.heading(level, textContent(n))
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "button", "input":
				return
			case "p", "blockquote":
				b.block(textContent(n))
				return
			case "ol":
				i := 0
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type != html.ElementNode || c.Data != "li" {
						continue
					}
					i++
					listItem(b, strconv.Itoa(i)+")", textContent(c))
				}
				return
			case "li":
				b.block(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return b.finish(idPrefix), nil
}

// listItem keeps an explicit "a)" marker in the item text over the ordinal.
func listItem(b *builder, ordinal, text string) {
	if marker, body, ok := splitListMarker(strings.TrimSpace(text)); ok {
		ordinal, text = marker, body
	}
	b.listItem(ordinal, text)
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// textContent joins the text below n with runs of whitespace collapsed.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

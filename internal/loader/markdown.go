package loader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownLoader handles Markdown statute sources using goldmark.
type MarkdownLoader struct {
	Title string
}

func (l *MarkdownLoader) Load(r io.Reader, idPrefix string) ([]lawdoc.Section, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	b := newBuilder(l.Title)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(node.Level, string(node.Text(src)))
		case *ast.List:
			num := node.Start
			if num == 0 {
				num = 1
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				t := extractText(item, src)
				if marker, body, ok := splitListMarker(t); ok {
					b.listItem(marker, body)
				} else if node.IsOrdered() {
					b.listItem(fmt.Sprintf("%d.", num), t)
				} else {
					b.listItem("-", t)
				}
				num++
			}
		default:
			b.block(extractText(n, src))
		}
	}
	return b.finish(idPrefix), nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

package loader

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/dgallion1/lexview/internal/lawdoc"
)

// TextLoader handles plain text statutes. Paragraphs are separated by blank
// lines; a paragraph whose first word is a division keyword is a heading.
type TextLoader struct {
	Title string
}

// headingLevels ranks the divisions used by Chilean statutes.
var headingLevels = map[string]int{
	"LIBRO":    1,
	"TÍTULO":   2,
	"TITULO":   2,
	"CAPÍTULO": 3,
	"CAPITULO": 3,
	"PÁRRAFO":  4,
	"PARRAFO":  4,
	"§":        4,
}

func (l *TextLoader) Load(r io.Reader, idPrefix string) ([]lawdoc.Section, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	b := newBuilder(l.Title)
	for _, para := range paragraphs {
		if level := textHeadingLevel(para); level > 0 {
			b.heading(level, strings.Join(strings.Fields(para), " "))
			continue
		}
		b.block(para)
	}
	return b.finish(idPrefix), nil
}

func textHeadingLevel(para string) int {
	first, _, _ := strings.Cut(strings.TrimSpace(para), " ")
	first = strings.TrimRightFunc(first, func(r rune) bool { return !unicode.IsLetter(r) && r != '§' })
	if first == "" || first != strings.ToUpper(first) {
		return 0
	}
	return headingLevels[first]
}

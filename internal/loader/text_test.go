package loader

import (
	"strings"
	"testing"
)

func TestTextLoader_DivisionsAndArticles(t *testing.T) {
	input := `LIBRO PRIMERO

TÍTULO I
De los delitos

Artículo 1°.- Es delito toda acción u omisión voluntaria penada por la ley.

Artículo 2°.- Las acciones u omisiones que cometidas con dolo constituyen delitos.
a) primera letra
b) segunda letra

TÍTULO II

Artículo 3°.- Tercero.
`
	l := &TextLoader{Title: "codigo-penal"}
	sections, err := l.Load(strings.NewReader(input), "cp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 || sections[0].Title != "LIBRO PRIMERO" {
		t.Fatalf("expected one LIBRO section, got %+v", sections)
	}
	titles := sections[0].Subsections
	if len(titles) != 2 {
		t.Fatalf("expected 2 títulos, got %d", len(titles))
	}
	if titles[0].Title != "TÍTULO I De los delitos" {
		t.Errorf("unexpected title %q", titles[0].Title)
	}
	if len(titles[0].Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(titles[0].Articles))
	}
	if titles[1].Articles[0].Number != "Artículo 3°" {
		t.Errorf("unexpected number %q", titles[1].Articles[0].Number)
	}
}

func TestTextLoader_ListParagraphs(t *testing.T) {
	input := "Artículo 1.- Son penas:\n\na) la multa\n\nb) el comiso\n"
	l := &TextLoader{}
	sections, err := l.Load(strings.NewReader(input), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	subs := sections[0].Articles[0].Subsections
	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-articles, got %d", len(subs))
	}
	if subs[0].Number != "a)" || subs[0].Text != "la multa" {
		t.Errorf("unexpected sub-article %+v", subs[0])
	}
}

func TestTextLoader_LowercaseKeywordIsNotHeading(t *testing.T) {
	input := "Libro de registro de detenidos.\n\nOtro párrafo."
	l := &TextLoader{Title: "t"}
	sections, err := l.Load(strings.NewReader(input), "t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 || len(sections[0].Subsections) != 0 {
		t.Fatalf("expected a single preamble section, got %+v", sections)
	}
}

func TestTextLoader_EmptyInput(t *testing.T) {
	l := &TextLoader{Title: "empty"}
	sections, err := l.Load(strings.NewReader(""), "e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 0 {
		t.Errorf("expected 0 sections for empty input, got %d", len(sections))
	}
}

func TestTextLoader_MultipleBlankLines(t *testing.T) {
	input := "Para one.\n\n\n\n   \nPara two."
	l := &TextLoader{Title: "gaps"}
	sections, err := l.Load(strings.NewReader(input), "g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if got := sections[0].Articles[0].Text; got != "Para one.\n\nPara two." {
		t.Errorf("unexpected text %q", got)
	}
}

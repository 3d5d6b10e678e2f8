package lawdoc

import (
	"errors"
	"fmt"
)

// Kind is the catalog category of a document.
type Kind string

const (
	KindDocument      Kind = "document"
	KindJurisprudence Kind = "jurisprudence"
	KindCalculator    Kind = "calculator"
)

// Mode selects how a document's content reaches the viewer.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeRawMarkup  Mode = "raw_markup"
)

// Document is a catalog entry. Exactly one of Content (or Source, which loads
// into Content) and RawMarkupRef is set.
type Document struct {
	ID           string    `yaml:"id" json:"id"`
	ShortName    string    `yaml:"short_name" json:"short_name"`
	FullName     string    `yaml:"full_name" json:"full_name"`
	Description  string    `yaml:"description,omitempty" json:"description,omitempty"`
	Kind         Kind      `yaml:"type" json:"type"`
	Content      []Section `yaml:"content,omitempty" json:"content,omitempty"`
	Source       string    `yaml:"source,omitempty" json:"-"`
	RawMarkupRef string    `yaml:"html_path,omitempty" json:"html_path,omitempty"`
}

// Section is a recursive title/chapter in a structured document.
type Section struct {
	ID          string    `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Articles    []Article `yaml:"articles,omitempty" json:"articles,omitempty"`
	Subsections []Section `yaml:"subsections,omitempty" json:"subsections,omitempty"`
}

// Article is a numbered provision; Subsections holds nested paragraphs.
type Article struct {
	ID          string    `yaml:"id" json:"id"`
	Number      string    `yaml:"number" json:"number"`
	Text        string    `yaml:"text" json:"text"`
	Subsections []Article `yaml:"subsections,omitempty" json:"subsections,omitempty"`
}

// Match is one located occurrence of a search term inside an article's text.
type Match struct {
	ID        string `json:"match_id"`
	ArticleID string `json:"article_id"`
}

var (
	ErrBothModes = errors.New("document has both structured content and a raw markup reference")
	ErrNoContent = errors.New("document has neither structured content nor a raw markup reference")
)

// Mode reports how the document is viewed. A document with a raw markup
// reference is always raw markup; Validate rejects the ambiguous case.
func (d *Document) Mode() Mode {
	if d.RawMarkupRef != "" {
		return ModeRawMarkup
	}
	return ModeStructured
}

// Viewable reports whether the content viewer handles this kind.
func (d *Document) Viewable() bool {
	return d.Kind == KindDocument || d.Kind == KindJurisprudence
}

// HasContent reports whether the document carries renderable content for its mode.
func (d *Document) HasContent() bool {
	if d.Mode() == ModeRawMarkup {
		return d.RawMarkupRef != ""
	}
	return len(d.Content) > 0
}

// Validate checks the one-mode invariant.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document %q: missing id", d.ShortName)
	}
	structured := len(d.Content) > 0 || d.Source != ""
	switch {
	case structured && d.RawMarkupRef != "":
		return fmt.Errorf("document %s: %w", d.ID, ErrBothModes)
	case !structured && d.RawMarkupRef == "" && d.Viewable():
		return fmt.Errorf("document %s: %w", d.ID, ErrNoContent)
	}
	return nil
}

// WalkArticles visits every article of the section tree in pre-order: for
// each section its articles (parent before sub-articles), then its subsections.
// Returning false from fn stops the walk.
func WalkArticles(sections []Section, fn func(a *Article) bool) {
	var walkArticle func(a *Article) bool
	walkArticle = func(a *Article) bool {
		if !fn(a) {
			return false
		}
		for i := range a.Subsections {
			if !walkArticle(&a.Subsections[i]) {
				return false
			}
		}
		return true
	}
	var walkSection func(s *Section) bool
	walkSection = func(s *Section) bool {
		for i := range s.Articles {
			if !walkArticle(&s.Articles[i]) {
				return false
			}
		}
		for i := range s.Subsections {
			if !walkSection(&s.Subsections[i]) {
				return false
			}
		}
		return true
	}
	for i := range sections {
		if !walkSection(&sections[i]) {
			return
		}
	}
}

// CountArticles returns the number of articles in the tree, sub-articles included.
func CountArticles(sections []Section) int {
	n := 0
	WalkArticles(sections, func(*Article) bool {
		n++
		return true
	})
	return n
}

// Package catalog provides the documents the viewer can open.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/dgallion1/lexview/internal/loader"
	"gopkg.in/yaml.v3"
)

//go:embed data
var bundled embed.FS

// ErrNotFound is returned by Get for an unknown document id.
var ErrNotFound = errors.New("document not found")

type catalogFile struct {
	Documents []lawdoc.Document `yaml:"documents"`
}

// Catalog is an immutable, ordered set of documents.
type Catalog struct {
	docs []lawdoc.Document
	byID map[string]int
}

// New builds a catalog from docs and validates it.
func New(docs []lawdoc.Document) (*Catalog, error) {
	c := &Catalog{docs: docs, byID: make(map[string]int, len(docs))}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for i, d := range docs {
		c.byID[d.ID] = i
	}
	return c, nil
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		return nil, err
	}
	return Load(sub, "catalog.yaml")
}

// LoadFile reads a catalog from disk. Source files resolve relative to it.
func LoadFile(name string) (*Catalog, error) {
	return Load(os.DirFS(filepath.Dir(name)), filepath.Base(name))
}

// Load reads the YAML catalog at name in fsys and loads every source file it
// references into structured content.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", name, err)
	}

	dir := path.Dir(name)
	for i := range f.Documents {
		d := &f.Documents[i]
		if d.Source == "" {
			continue
		}
		if len(d.Content) > 0 {
			return nil, fmt.Errorf("document %s: both inline content and source %s", d.ID, d.Source)
		}
		sections, err := loadSource(fsys, path.Join(dir, d.Source), d.ID)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.ID, err)
		}
		d.Content = sections
	}
	return New(f.Documents)
}

func loadSource(fsys fs.FS, name, idPrefix string) ([]lawdoc.Section, error) {
	l, err := loader.ForFile(name)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	sections, err := l.Load(f, idPrefix)
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", name, err)
	}
	return sections, nil
}

// Validate checks document id uniqueness, the one-mode invariant and that
// every article id is non-empty and unique across the catalog, which keeps
// match ids unambiguous.
func (c *Catalog) Validate() error {
	docIDs := make(map[string]bool, len(c.docs))
	articleIDs := make(map[string]string)
	var errs []error
	for i := range c.docs {
		d := &c.docs[i]
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if docIDs[d.ID] {
			errs = append(errs, fmt.Errorf("duplicate document id %q", d.ID))
		}
		docIDs[d.ID] = true

		lawdoc.WalkArticles(d.Content, func(a *lawdoc.Article) bool {
			switch owner, seen := articleIDs[a.ID]; {
			case a.ID == "":
				errs = append(errs, fmt.Errorf("document %s: article %q has no id", d.ID, a.Number))
			case seen:
				errs = append(errs, fmt.Errorf("document %s: article id %q already used by %s", d.ID, a.ID, owner))
			default:
				articleIDs[a.ID] = d.ID
			}
			return true
		})
	}
	return errors.Join(errs...)
}

// List returns the documents in catalog order.
func (c *Catalog) List() []lawdoc.Document {
	out := make([]lawdoc.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Get returns the document with id. The result is shared and must not be
// modified.
func (c *Catalog) Get(id string) (*lawdoc.Document, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return &c.docs[i], nil
}

// ByKind returns the documents of one kind in catalog order.
func (c *Catalog) ByKind(k lawdoc.Kind) []lawdoc.Document {
	var out []lawdoc.Document
	for _, d := range c.docs {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// AssetRefs lists every html path in the catalog, calculators included. These
// are the documents to precache for offline use.
func (c *Catalog) AssetRefs() []string {
	var refs []string
	for _, d := range c.docs {
		if d.RawMarkupRef != "" {
			refs = append(refs, d.RawMarkupRef)
		}
	}
	return refs
}

// Assets returns the bundled static documents, rooted so that html paths
// like /leyes/ley-rpa.html resolve directly.
func Assets() fs.FS {
	sub, err := fs.Sub(bundled, "data/public")
	if err != nil {
		panic(err)
	}
	return sub
}

// AssetFetcher serves html paths from the bundled assets without a network.
func AssetFetcher() fetch.Fetcher {
	assets := Assets()
	return fetch.FetcherFunc(func(ctx context.Context, ref string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		data, err := fs.ReadFile(assets, strings.TrimPrefix(ref, "/"))
		if err != nil {
			return "", &fetch.FetchError{Ref: ref, StatusCode: http.StatusNotFound, Message: "not found", Err: err}
		}
		return string(data), nil
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/lawdoc"
	"github.com/go-chi/chi/v5"
)

// documentSummary is a catalog entry without its content.
type documentSummary struct {
	ID           string      `json:"id"`
	ShortName    string      `json:"short_name"`
	FullName     string      `json:"full_name"`
	Description  string      `json:"description,omitempty"`
	Kind         lawdoc.Kind `json:"type"`
	Mode         lawdoc.Mode `json:"mode,omitempty"`
	Viewable     bool        `json:"viewable"`
	HTMLPath     string      `json:"html_path,omitempty"`
	ArticleCount int         `json:"article_count,omitempty"`
}

func summarize(d *lawdoc.Document) documentSummary {
	sum := documentSummary{
		ID:           d.ID,
		ShortName:    d.ShortName,
		FullName:     d.FullName,
		Description:  d.Description,
		Kind:         d.Kind,
		Viewable:     d.Viewable(),
		HTMLPath:     d.RawMarkupRef,
		ArticleCount: lawdoc.CountArticles(d.Content),
	}
	if sum.Viewable {
		sum.Mode = d.Mode()
	}
	return sum
}

// handleListDocuments lists the catalog. ?type= filters by kind.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var docs []lawdoc.Document
	if kind := r.URL.Query().Get("type"); kind != "" {
		docs = s.catalog.ByKind(lawdoc.Kind(kind))
	} else {
		docs = s.catalog.List()
	}
	out := make([]documentSummary, 0, len(docs))
	for i := range docs {
		out = append(out, summarize(&docs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// handleGetDocument returns one catalog entry including structured content.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.Get(chi.URLParam(r, "docID"))
	if errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleCacheStatus reports the offline cache version and its entries.
func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	refs, err := s.cache.Refs(r.Context())
	if err != nil {
		jsonError(w, "failed to list cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if refs == nil {
		refs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"name":    s.cache.Name(),
		"refs":    refs,
	})
}

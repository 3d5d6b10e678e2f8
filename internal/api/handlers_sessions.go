package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/session"
	"github.com/dgallion1/lexview/internal/viewer"
	"github.com/go-chi/chi/v5"
)

type documentRequest struct {
	DocumentID string `json:"document_id"`
}

type searchRequest struct {
	Term string `json:"term"`
}

type fontRequest struct {
	Size  *int `json:"size"`
	Delta *int `json:"delta"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	View      viewer.View `json:"view"`
}

type matchResponse struct {
	MatchID string      `json:"match_id,omitempty"`
	View    viewer.View `json:"view"`
}

// session looks up the session named in the URL and records activity.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil
	}
	sess.Touch()
	return sess
}

// selectDocument opens docID in sess and writes the error response on failure.
func (s *Server) selectDocument(w http.ResponseWriter, sess *session.Session, docID string) bool {
	if docID == "" {
		jsonError(w, "document_id is required", http.StatusBadRequest)
		return false
	}
	doc, err := s.catalog.Get(docID)
	if errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if err := sess.View().Select(doc); err != nil {
		if errors.Is(err, viewer.ErrDocumentNotViewable) {
			jsonError(w, viewer.MsgNotViewable, http.StatusUnprocessableEntity)
			return false
		}
		s.log.Error("select document", "session_id", sess.ID, "document_id", docID, "error", err)
		jsonError(w, viewer.MsgFetchFailed, http.StatusInternalServerError)
		return false
	}
	return true
}

// handleCreateSession opens a content view on a document.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess := s.sessions.Create()
	if !s.selectDocument(w, sess, req.DocumentID) {
		s.sessions.Delete(sess.ID)
		return
	}
	s.log.Info("session created", "session_id", sess.ID, "document_id", req.DocumentID)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID, View: sess.View().Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, View: sess.View().Snapshot()})
}

// handleDeleteSession closes the view, as when the user returns to the catalog.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sessionID")) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectDocument(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req documentRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !s.selectDocument(w, sess, req.DocumentID) {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, View: sess.View().Snapshot()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req searchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.View().SetSearchTerm(req.Term)
	searches.Inc()
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, View: sess.View().Snapshot()})
}

func (s *Server) handleNextMatch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	id, _ := sess.View().NextMatch()
	writeJSON(w, http.StatusOK, matchResponse{MatchID: id, View: sess.View().Snapshot()})
}

func (s *Server) handlePreviousMatch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	id, _ := sess.View().PreviousMatch()
	writeJSON(w, http.StatusOK, matchResponse{MatchID: id, View: sess.View().Snapshot()})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": sess.View().Matches()})
}

// handleFont sets an absolute size or adjusts by a delta; the result is clamped.
func (s *Server) handleFont(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req fontRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.Size != nil && req.Delta != nil:
		jsonError(w, "specify size or delta, not both", http.StatusBadRequest)
		return
	case req.Size != nil:
		sess.View().SetFontSize(*req.Size)
	case req.Delta != nil:
		sess.View().AdjustFontSize(*req.Delta)
	default:
		jsonError(w, "size or delta is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, View: sess.View().Snapshot()})
}

// handleContent renders the content area as an HTML fragment.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var buf bytes.Buffer
	if err := sess.View().Render(&buf); err != nil {
		s.log.Error("render content", "session_id", sess.ID, "error", err)
		jsonError(w, "failed to render content", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

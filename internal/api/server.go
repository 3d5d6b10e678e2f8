package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/lexview/internal/assetcache"
	"github.com/dgallion1/lexview/internal/catalog"
	"github.com/dgallion1/lexview/internal/config"
	"github.com/dgallion1/lexview/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for the legal text viewer.
type Server struct {
	router   chi.Router
	catalog  *catalog.Catalog
	sessions *session.Store
	cache    *assetcache.Cache
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. cache may be nil when the
// offline cache is disabled.
func NewServer(cat *catalog.Catalog, sessions *session.Store, cache *assetcache.Cache, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		catalog:  cat,
		sessions: sessions,
		cache:    cache,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(RequestMetrics)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.CORSAllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Bundled statutes and calculators, the targets of html_path.
	assets := http.FileServer(http.FS(catalog.Assets()))
	r.Handle("/leyes/*", assets)
	r.Handle("/calculators/*", assets)

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{docID}", s.handleGetDocument)
		r.Get("/cache", s.handleCacheStatus)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/document", s.handleSelectDocument)
			r.Put("/search", s.handleSearch)
			r.Post("/matches/next", s.handleNextMatch)
			r.Post("/matches/previous", s.handlePreviousMatch)
			r.Get("/matches", s.handleListMatches)
			r.Put("/font", s.handleFont)
			r.Get("/content", s.handleContent)
			r.Get("/events", s.handleEvents)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Package api exposes the generation core and the session stores over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/tryon/internal/core/domain"
	"github.com/vietddude/tryon/internal/infra/storage"
)

// Generator is the part of generation.Generator the API needs.
type Generator interface {
	GenerateGarment(ctx context.Context, prompt string) (domain.EmbeddedImage, error)
	GenerateTryOn(ctx context.Context, person, cloth domain.EmbeddedImage) (domain.EmbeddedImage, error)
}

// ImageLoader resolves data URLs and remote URLs into embedded images.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (domain.EmbeddedImage, error)
}

// Deps groups what the handlers work with.
type Deps struct {
	Generator Generator
	Loader    ImageLoader
	History   storage.HistoryRepository
	Assets    storage.AssetRepository
	// CredentialSet reports whether an API key was resolved at startup.
	CredentialSet bool
}

// Server serves the JSON API, health and metrics.
type Server struct {
	deps   Deps
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new API server.
func NewServer(deps Deps, port int) *Server {
	s := &Server{
		deps: deps,
		log:  slog.Default().With("component", "api"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/assets", s.handleListAssets)
	mux.HandleFunc("POST /api/assets", s.handleUploadAsset)
	mux.HandleFunc("POST /api/garments", s.handleGenerateGarment)
	mux.HandleFunc("POST /api/try-on", s.handleTryOn)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	return s.logRequests(cors(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !s.deps.CredentialSet {
		// Generation will fail fast; the catalog and history still work.
		status = "degraded"
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"history": s.deps.History.Len(r.Context()),
	})
}

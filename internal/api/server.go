// Package api exposes the CRUD and sync surface over HTTP. The ingestion
// pipeline itself lives in internal/ingest; the handlers here are thin
// collaborators around the store and the ingestor.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/cashboard/cashboard/internal/ingest"
	"github.com/cashboard/cashboard/internal/service"
)

const (
	cacheKeyCategories = "categories"
	cacheKeyRules      = "rules"
)

// Server wires the store and ingestor into an HTTP handler.
type Server struct {
	store     service.Storage
	ingestor  *ingest.Ingestor
	outputDir string
	cache     *gocache.Cache
	limiter   *rate.Limiter
}

// NewServer creates a Server. outputDir is where scraper exports land; the
// sync endpoint ingests the latest file per bank from it.
func NewServer(store service.Storage, ingestor *ingest.Ingestor, outputDir string) *Server {
	return &Server{
		store:     store,
		ingestor:  ingestor,
		outputDir: outputDir,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
	}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})

		r.Get("/accounts", s.handleListAccounts)
		r.Get("/cards", s.handleListCards)
		r.Get("/scrape-log", s.handleScrapeLog)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Get("/uncategorized", s.handleUncategorized)
			r.Put("/{id}/classify", s.handleClassifyTransaction)
		})

		r.Post("/sync/ingest", s.handleSyncIngest)
	})

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			slog.Warn("rate limit exceeded", "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

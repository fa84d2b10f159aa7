// Package server exposes quiz solving over HTTP and MCP. Both transports
// share the same kit.Endpoint.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/quizchain/kit"
	"github.com/hazyhaar/quizchain/shield"
)

// Version is reported by the banner and the MCP implementation.
const Version = "1.0.0"

// Config configures a Server.
type Config struct {
	// Secret authenticates /solve callers. Ignored when SecretBcrypt is set.
	Secret       string
	SecretBcrypt string

	// Run solves a chain. Required.
	Run RunFunc

	// RateLimiter, when set, guards the routes.
	RateLimiter *shield.RateLimiter

	// SolveTimeout bounds a whole /solve call on top of the chain budget.
	// Zero means no extra bound.
	SolveTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server holds the shared endpoints.
type Server struct {
	cfg   Config
	solve kit.Endpoint
}

// New creates a Server.
func New(cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg}
	s.solve = kit.Chain(
		kit.Logging(cfg.Logger, "solve"),
		kit.Timeout(cfg.SolveTimeout),
	)(s.SolveEndpoint())
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.cfg.RateLimiter) {
		r.Use(mw)
	}
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/solve", s.handleSolve)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Quiz chain solver API",
		"version": Version,
		"endpoints": map[string]string{
			"/solve":  "POST - Solve a quiz chain",
			"/health": "GET - Health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "invalid JSON body"})
		return
	}

	ctx := kit.WithTransport(r.Context(), "http")
	resp, err := s.solve(ctx, &req)
	if err != nil {
		writeJSON(w, StatusOf(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

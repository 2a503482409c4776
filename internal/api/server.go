// Package api implements the classification HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bioclass/internal/buildinfo"
	"bioclass/internal/classifier"
	"bioclass/internal/prompt"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	svc     *classifier.Service
	prompts *prompt.Store
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, svc *classifier.Service, prompts *prompt.Store, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		svc:     svc,
		prompts: prompts,
		logger:  logger,
	}
}

// Handler builds the route table. Split out from Start so tests can
// drive the full mux through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Classification
	mux.HandleFunc("POST /classify", s.handleClassify)

	// Prompt management
	mux.HandleFunc("GET /prompt", s.handlePromptGet)
	mux.HandleFunc("PUT /prompt", s.handlePromptUpdate)
	mux.HandleFunc("POST /prompt/reset", s.handlePromptReset)

	// Health endpoints
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests and blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.address, s.port),
		Handler: s.Handler(),
		// WriteTimeout leaves headroom above the classifier's AI-stage
		// budget so a slow model run doesn't sever the response.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("starting API server", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "bioclassd",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ClassifyRequest is the /classify request body. Prompt optionally
// overrides the stored classification prompt for this call only.
type ClassifyRequest struct {
	Bios   []string `json:"bios"`
	Prompt string   `json:"prompt,omitempty"`
}

// ClassifyResponse carries one label per input bio, in input order.
type ClassifyResponse struct {
	Results []string `json:"results"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Bios) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "bios is required and must be a non-empty array of strings")
		return
	}

	results, err := s.svc.ClassifyWith(r.Context(), req.Bios, req.Prompt)
	if err != nil {
		// The only classification error that can surface is input
		// validation; AI-stage failures are absorbed downstream.
		if errors.Is(err, classifier.ErrEmptyBatch) {
			s.errorResponse(w, http.StatusBadRequest, "bios is required and must be a non-empty array of strings")
			return
		}
		s.logger.Error("classification failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "classification failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ClassifyResponse{Results: results}, s.logger)
}

// PromptUpdateRequest is the PUT /prompt request body.
type PromptUpdateRequest struct {
	Prompt string `json:"prompt"`
}

// PromptResponse echoes the current prompt.
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handlePromptGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, PromptResponse{Prompt: s.prompts.Get()}, s.logger)
}

func (s *Server) handlePromptUpdate(w http.ResponseWriter, r *http.Request) {
	var req PromptUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, err := s.prompts.Set(req.Prompt)
	if err != nil {
		if errors.Is(err, prompt.ErrEmptyPrompt) {
			s.errorResponse(w, http.StatusBadRequest, "prompt must not be empty")
			return
		}
		// The caller asked for a durable change and the disk write
		// failed; that is a server-side error, not theirs.
		s.logger.Error("prompt update not persisted", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to persist prompt")
		return
	}

	s.logger.Info("prompt updated", "chars", len(stored))
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, PromptResponse{Prompt: stored}, s.logger)
}

func (s *Server) handlePromptReset(w http.ResponseWriter, r *http.Request) {
	restored, err := s.prompts.Reset()
	if err != nil {
		// The in-memory reset took effect; only durability failed.
		s.logger.Warn("prompt reset not persisted", "error", err)
	}

	s.logger.Info("prompt reset to default")
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, PromptResponse{Prompt: restored}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

// Package server exposes the assistant over a small JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/brunobiangulo/docbot/analysis"
)

// Config configures the HTTP API. An empty Addr disables it. Without an
// APIKey the API is open and /analyze accepts uploads only.
type Config struct {
	Addr        string `json:"addr" yaml:"addr"`
	APIKey      string `json:"api_key" yaml:"api_key"`
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins"`
	// MaxUploadBytes bounds multipart uploads to /analyze.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gte=0"`
}

// Assistant is what the API needs from the application.
type Assistant interface {
	Reply(ctx context.Context, chatID int64, text string) string
	AnalyzeFile(ctx context.Context, chatID int64, ref analysis.FileReference, filename string) string
	AnalyzeData(ctx context.Context, data []byte, contentType, filename string) string
	WebSearch(ctx context.Context, query string) string
}

// New returns the API handler with its middleware chain applied.
func New(a Assistant, cfg Config) http.Handler {
	h := newHandler(a, cfg)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analyze", h.handleAnalyze)
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// NewHTTPServer wraps New in an *http.Server with sane timeouts.
func NewHTTPServer(a Assistant, cfg Config) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      New(a, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // large PDFs take a while to describe
		IdleTimeout:  120 * time.Second,
	}
}

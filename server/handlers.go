package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/docbot/analysis"
)

const defaultMaxUpload = 20 << 20

type handler struct {
	assistant Assistant
	maxUpload int64
	// allowURL enables server-side fetching for /analyze. Set only when
	// requests are authenticated.
	allowURL bool
}

func newHandler(a Assistant, cfg Config) *handler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &handler{assistant: a, maxUpload: maxUpload, allowURL: cfg.APIKey != ""}
}

type reply struct {
	Text string `json:"text"`
}

// POST /analyze
// Accepts a multipart "file" upload or JSON {"url", "content_type"}. The
// URL form needs an API key to be configured.
func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		h.handleUpload(w, r)
		return
	}
	if !h.allowURL {
		writeError(w, http.StatusForbidden, "url analysis requires an api key; upload the file instead")
		return
	}

	var req struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type,omitempty"`
		ChatID      int64  `json:"chat_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'url'")
		return
	}

	ref := analysis.FileReference{URL: req.URL, DeclaredContentType: req.ContentType}
	text := h.assistant.AnalyzeFile(r.Context(), req.ChatID, ref, filepath.Base(req.URL))
	writeJSON(w, http.StatusOK, reply{Text: text})
}

func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		slog.Error("reading upload", "error", err)
		return
	}

	// Sanitise filename to prevent path traversal in logs and storage.
	name := filepath.Base(header.Filename)
	text := h.assistant.AnalyzeData(r.Context(), data, header.Header.Get("Content-Type"), name)
	writeJSON(w, http.StatusOK, reply{Text: text})
}

// POST /search
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid request: 'query' is required")
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: h.assistant.WebSearch(r.Context(), req.Query)})
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		ChatID int64  `json:"chat_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid request: 'text' is required")
		return
	}
	writeJSON(w, http.StatusOK, reply{Text: h.assistant.Reply(r.Context(), req.ChatID, req.Text)})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/docbot/analysis"
)

type fakeAssistant struct {
	ref      analysis.FileReference
	upload   []byte
	uploadCT string
	name     string
}

func (f *fakeAssistant) Reply(_ context.Context, _ int64, text string) string { return "re: " + text }

func (f *fakeAssistant) AnalyzeFile(_ context.Context, _ int64, ref analysis.FileReference, name string) string {
	f.ref, f.name = ref, name
	return "analysed url"
}

func (f *fakeAssistant) AnalyzeData(_ context.Context, data []byte, ct, name string) string {
	f.upload, f.uploadCT, f.name = data, ct, name
	return "analysed upload"
}

func (f *fakeAssistant) WebSearch(_ context.Context, q string) string { return "found " + q }

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeText(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var r reply
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r.Text
}

var bearer = map[string]string{"Authorization": "Bearer k"}

func TestAnalyzeURL(t *testing.T) {
	a := &fakeAssistant{}
	rec := do(t, New(a, Config{APIKey: "k"}), "POST", "/analyze", `{"url":"https://x/docs/a.pdf","content_type":"application/pdf"}`, bearer)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analysed url", decodeText(t, rec))
	assert.Equal(t, analysis.FileReference{URL: "https://x/docs/a.pdf", DeclaredContentType: "application/pdf"}, a.ref)
	assert.Equal(t, "a.pdf", a.name)
}

func TestAnalyzeURLNeedsAPIKey(t *testing.T) {
	a := &fakeAssistant{}
	rec := do(t, New(a, Config{}), "POST", "/analyze", `{"url":"http://169.254.169.254/latest/meta-data"}`, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, a.ref.URL, "nothing is fetched")
}

func TestAnalyzeUpload(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "../../etc/photo.png")
	require.NoError(t, err)
	fw.Write([]byte("pngdata"))
	mw.Close()

	a := &fakeAssistant{}
	req := httptest.NewRequest("POST", "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	New(a, Config{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "analysed upload", decodeText(t, rec))
	assert.Equal(t, []byte("pngdata"), a.upload)
	assert.Equal(t, "photo.png", a.name)
}

func TestBadRequests(t *testing.T) {
	h := New(&fakeAssistant{}, Config{})
	for _, tc := range []struct{ path, body string }{
		{"/search", `{"query":"  "}`},
		{"/ask", `not json`},
	} {
		rec := do(t, h, "POST", tc.path, tc.body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
	}

	rec := do(t, New(&fakeAssistant{}, Config{APIKey: "k"}), "POST", "/analyze", `{}`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchAndAsk(t *testing.T) {
	h := New(&fakeAssistant{}, Config{})
	assert.Equal(t, "found go", decodeText(t, do(t, h, "POST", "/search", `{"query":"go"}`, nil)))
	assert.Equal(t, "re: hi", decodeText(t, do(t, h, "POST", "/ask", `{"text":"hi"}`, nil)))
}

func TestAuth(t *testing.T) {
	h := New(&fakeAssistant{}, Config{APIKey: "secret"})

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "POST", "/ask", `{"text":"hi"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "POST", "/ask", `{"text":"hi"}`, map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "POST", "/ask", `{"text":"hi"}`, map[string]string{"Authorization": "Bearer secret"}).Code)
}

func TestCORSPreflight(t *testing.T) {
	h := New(&fakeAssistant{}, Config{CORSOrigins: "https://app.example"})
	rec := do(t, h, "OPTIONS", "/ask", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

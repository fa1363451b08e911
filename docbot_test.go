package docbot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/docbot/analysis"
	"github.com/brunobiangulo/docbot/describe"
	"github.com/brunobiangulo/docbot/llm"
	"github.com/brunobiangulo/docbot/search"
)

// mockProvider answers every call with content.
type mockProvider struct {
	content string
	err     error
}

func (m *mockProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.content}, nil
}

func (m *mockProvider) ChatWithImages(context.Context, llm.VisionChatRequest) (*llm.ChatResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.content}, nil
}

type mockSearcher struct {
	results []search.Result
	err     error
}

func (m *mockSearcher) Search(context.Context, string, int) ([]search.Result, error) {
	return m.results, m.err
}

type mockFetcher struct {
	data        []byte
	contentType string
}

func (m *mockFetcher) Fetch(context.Context, string) ([]byte, string, error) {
	return m.data, m.contentType, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestAssistant(t *testing.T, p *mockProvider, opts ...Option) Assistant {
	t.Helper()
	base := []Option{
		WithProvider(p),
		WithSearcher(&mockSearcher{}),
		WithFetcher(&mockFetcher{}),
		WithoutHistory(),
	}
	a, err := New(DefaultConfig(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAssistantReply(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "hello there", newTestAssistant(t, &mockProvider{content: "hello there"}).Reply(ctx, 1, "hi"))

	failing := newTestAssistant(t, &mockProvider{err: errors.New("quota")})
	assert.Equal(t, describe.TextFallback, failing.Reply(ctx, 1, "hi"))
}

func TestAssistantAnalyzeFile(t *testing.T) {
	a := newTestAssistant(t, &mockProvider{content: "a white square"},
		WithFetcher(&mockFetcher{data: pngBytes(t), contentType: "image/png"}))

	got := a.AnalyzeFile(context.Background(), 1, analysis.FileReference{URL: "https://x/a.png"}, "a.png")
	assert.Equal(t, "a white square", got)
}

func TestAssistantAnalyzeFileUnsupported(t *testing.T) {
	a := newTestAssistant(t, &mockProvider{content: "unused"},
		WithFetcher(&mockFetcher{data: []byte("plain"), contentType: "text/plain"}))

	got := a.AnalyzeFile(context.Background(), 1, analysis.FileReference{URL: "https://x/a.txt"}, "a.txt")
	assert.Equal(t, analysis.MsgUnsupported, got)
}

func TestAssistantAnalyzeData(t *testing.T) {
	a := newTestAssistant(t, &mockProvider{content: "a white square"})
	assert.Equal(t, "a white square", a.AnalyzeData(context.Background(), pngBytes(t), "", "upload"))
	assert.Equal(t, analysis.MsgPDFError, a.AnalyzeData(context.Background(), []byte("%PDF-broken"), "application/pdf", "x.pdf"))
}

func TestAssistantWebSearch(t *testing.T) {
	results := []search.Result{
		{Title: "Go", Link: "https://go.dev", Snippet: "The Go language"},
	}
	a := newTestAssistant(t, &mockProvider{content: "A language."}, WithSearcher(&mockSearcher{results: results}))

	got := a.WebSearch(context.Background(), "golang")
	assert.Contains(t, got, "'golang'")
	assert.Contains(t, got, "A language.")
	assert.Contains(t, got, "https://go.dev")

	failing := newTestAssistant(t, &mockProvider{}, WithSearcher(&mockSearcher{err: errors.New("down")}))
	assert.Equal(t, search.MsgSearchError, failing.WebSearch(context.Background(), "golang"))
}

func TestAssistantWithoutHistory(t *testing.T) {
	a := newTestAssistant(t, &mockProvider{content: "ok"})

	_, err := a.Start(context.Background(), 1, "Ada", "ada")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, a.SaveContact(context.Background(), 1, "+100"), ErrStoreClosed)
	assert.NoError(t, a.Close())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = ""
	_, err := New(cfg, WithoutHistory())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

package describe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/brunobiangulo/docbot/imaging"
	"github.com/brunobiangulo/docbot/llm"
)

// mockVisionProvider records requests and returns canned output.
type mockVisionProvider struct {
	content    string
	err        error
	chats      []llm.ChatRequest
	visionReqs []llm.VisionChatRequest
}

func (m *mockVisionProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.chats = append(m.chats, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.content}, nil
}

func (m *mockVisionProvider) ChatWithImages(_ context.Context, req llm.VisionChatRequest) (*llm.ChatResponse, error) {
	m.visionReqs = append(m.visionReqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.content}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAnalyzeImageSendsPromptAndJPEG(t *testing.T) {
	mock := &mockVisionProvider{content: "A blank square."}
	d := New(mock, nil, Config{})

	got := d.AnalyzeImage(context.Background(), pngBytes(t, 2000, 500))
	if got != "A blank square." {
		t.Fatalf("AnalyzeImage = %q", got)
	}
	if len(mock.visionReqs) != 1 {
		t.Fatalf("vision calls = %d, want 1", len(mock.visionReqs))
	}
	parts := mock.visionReqs[0].Messages[0].Content
	if len(parts) != 2 || parts[0].Text != "Analyze this image and describe its contents:" {
		t.Fatalf("parts = %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image part = %q", parts[1].ImageURL.URL[:40])
	}
}

func TestAnalyzeImageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		mock *mockVisionProvider
		raw  []byte
	}{
		{"provider error", &mockVisionProvider{err: errors.New("boom")}, nil},
		{"empty output", &mockVisionProvider{content: "  \n"}, nil},
		{"undecodable", &mockVisionProvider{content: "never"}, []byte("garbage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if raw == nil {
				raw = pngBytes(t, 10, 10)
			}
			if got := New(tt.mock, nil, Config{}).AnalyzeImage(context.Background(), raw); got != ImageFallback {
				t.Errorf("got %q, want image fallback", got)
			}
		})
	}
}

func TestUndecodableImageSkipsModel(t *testing.T) {
	mock := &mockVisionProvider{content: "x"}
	New(mock, nil, Config{}).AnalyzeImage(context.Background(), []byte("nope"))
	if len(mock.visionReqs) != 0 {
		t.Errorf("model called %d times for undecodable input", len(mock.visionReqs))
	}
}

func TestDescribeText(t *testing.T) {
	mock := &mockVisionProvider{content: "Paris."}
	d := New(mock, nil, Config{MaxTokens: 128})
	if got := d.DescribeText(context.Background(), "Capital of France?"); got != "Paris." {
		t.Errorf("DescribeText = %q", got)
	}
	if mock.chats[0].Messages[0].Content != "Capital of France?" || mock.chats[0].MaxTokens != 128 {
		t.Errorf("request = %+v", mock.chats[0])
	}

	failing := New(&mockVisionProvider{err: errors.New("down")}, nil, Config{})
	if got := failing.DescribeText(context.Background(), "hi"); got != TextFallback {
		t.Errorf("DescribeText on error = %q", got)
	}
}

func TestTryDescribeWrapsErrDescribe(t *testing.T) {
	d := New(&mockVisionProvider{err: errors.New("down")}, nil, Config{})
	if _, err := d.TryDescribeText(context.Background(), "hi"); !errors.Is(err, ErrDescribe) {
		t.Errorf("TryDescribeText error = %v", err)
	}
	if _, err := d.TryDescribeImage(context.Background(), &imaging.NormalizedImage{}); !errors.Is(err, ErrDescribe) {
		t.Errorf("TryDescribeImage error = %v", err)
	}
}

func TestRateLimiterHonoursCancellation(t *testing.T) {
	mock := &mockVisionProvider{content: "ok"}
	d := New(mock, nil, Config{RatePerMinute: 1})

	ctx, cancel := context.WithCancel(context.Background())
	if got := d.DescribeText(ctx, "first"); got != "ok" {
		t.Fatalf("first call = %q", got)
	}
	cancel()
	if got := d.DescribeText(ctx, "second"); got != TextFallback {
		t.Errorf("second call with cancelled context = %q, want fallback", got)
	}
	if len(mock.chats) != 1 {
		t.Errorf("model calls = %d, want 1", len(mock.chats))
	}
}

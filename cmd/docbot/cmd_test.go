package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/docbot"
	"github.com/brunobiangulo/docbot/analysis"
)

type fakeAssistant struct {
	ref        analysis.FileReference
	data       []byte
	dataType   string
	filename   string
	query      string
	question   string
	closed     bool
	optsPassed int
}

func (f *fakeAssistant) Start(context.Context, int64, string, string) (bool, error) { return false, nil }
func (f *fakeAssistant) SaveContact(context.Context, int64, string) error          { return nil }

func (f *fakeAssistant) Reply(_ context.Context, _ int64, text string) string {
	f.question = text
	return "answer"
}

func (f *fakeAssistant) AnalyzeFile(_ context.Context, _ int64, ref analysis.FileReference, name string) string {
	f.ref, f.filename = ref, name
	return "remote report"
}

func (f *fakeAssistant) AnalyzeData(_ context.Context, data []byte, ct, name string) string {
	f.data, f.dataType, f.filename = data, ct, name
	return "local report"
}

func (f *fakeAssistant) WebSearch(_ context.Context, q string) string {
	f.query = q
	return "digest"
}

func (f *fakeAssistant) Close() error {
	f.closed = true
	return nil
}

// useFake swaps the assistant constructor and isolates the config from the
// environment.
func useFake(t *testing.T) *fakeAssistant {
	t.Helper()
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "DOCBOT_HTTP_ADDR", "DOCBOT_LLM_PROVIDER", "DOCBOT_LOG_LEVEL", "DOCBOT_LLM_BASE_URL"} {
		t.Setenv(k, "")
	}
	f := &fakeAssistant{}
	orig := newAssistant
	newAssistant = func(_ docbot.Config, opts ...docbot.Option) (docbot.Assistant, error) {
		f.optsPassed = len(opts)
		return f, nil
	}
	t.Cleanup(func() { newAssistant = orig })
	return f
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "docbot", cmd.Use)
	assert.NotEmpty(t, cmd.Version)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "analyze", "search", "ask", "version"})
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docbot version "))
	assert.Contains(t, out, "commit:")
	assert.Contains(t, out, "built:")
}

func TestAnalyzeRemote(t *testing.T) {
	f := useFake(t)
	out, err := run(t, context.Background(), "analyze", "https://files.example/doc/file_7", "--content-type", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "remote report\n", out)
	assert.Equal(t, analysis.FileReference{URL: "https://files.example/doc/file_7", DeclaredContentType: "application/pdf"}, f.ref)
	assert.Equal(t, "file_7", f.filename)
	assert.Equal(t, 1, f.optsPassed, "one-shot commands run without history")
	assert.True(t, f.closed)
}

func TestAnalyzeLocalFile(t *testing.T) {
	f := useFake(t)
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o600))

	out, err := run(t, context.Background(), "analyze", path)
	require.NoError(t, err)
	assert.Equal(t, "local report\n", out)
	assert.Equal(t, []byte("pixels"), f.data)
	assert.Equal(t, "scan.png", f.filename)
}

func TestAnalyzeMissingFile(t *testing.T) {
	useFake(t)
	_, err := run(t, context.Background(), "analyze", filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSearchAndAsk(t *testing.T) {
	f := useFake(t)

	out, err := run(t, context.Background(), "search", "golang", "generics")
	require.NoError(t, err)
	assert.Equal(t, "digest\n", out)
	assert.Equal(t, "golang generics", f.query)

	out, err = run(t, context.Background(), "ask", "what", "is", "a", "PDF?")
	require.NoError(t, err)
	assert.Equal(t, "answer\n", out)
	assert.Equal(t, "what is a PDF?", f.question)
}

func TestInvalidConfigFile(t *testing.T) {
	useFake(t)
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: nobody\n"), 0o600))

	_, err := run(t, context.Background(), "--config", path, "ask", "hi")
	assert.ErrorIs(t, err, docbot.ErrInvalidConfig)
}

func TestServeNeedsATransport(t *testing.T) {
	useFake(t)
	_, err := run(t, context.Background(), "serve")
	assert.ErrorIs(t, err, errNothingToServe)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	f := useFake(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := run(t, ctx, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.True(t, f.closed)
	assert.Equal(t, 0, f.optsPassed, "serve keeps history")
}

func TestSetupLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, "bogus")
	t.Cleanup(func() { setupLogger(os.Stderr, "info") })

	ctx := context.Background()
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
}

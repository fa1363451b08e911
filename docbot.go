// Package docbot is a chat assistant that answers questions, analyses
// uploaded images and PDF documents, and summarises web searches.
package docbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/docbot/analysis"
	"github.com/brunobiangulo/docbot/describe"
	"github.com/brunobiangulo/docbot/document"
	"github.com/brunobiangulo/docbot/fetch"
	"github.com/brunobiangulo/docbot/imaging"
	"github.com/brunobiangulo/docbot/llm"
	"github.com/brunobiangulo/docbot/search"
	"github.com/brunobiangulo/docbot/store"
)

// Assistant is the main entry point used by the transports.
type Assistant interface {
	// Start registers a chat on first contact. It reports whether the chat
	// was already registered.
	Start(ctx context.Context, chatID int64, firstName, username string) (bool, error)

	// SaveContact stores the phone number shared by a registered chat.
	SaveContact(ctx context.Context, chatID int64, phone string) error

	// Reply answers a free-text message.
	Reply(ctx context.Context, chatID int64, text string) string

	// AnalyzeFile downloads and analyses an uploaded file.
	AnalyzeFile(ctx context.Context, chatID int64, ref analysis.FileReference, filename string) string

	// AnalyzeData analyses file bytes that were uploaded directly. Nothing
	// is logged to the chat history.
	AnalyzeData(ctx context.Context, data []byte, contentType, filename string) string

	// WebSearch returns a digest of the top results for query.
	WebSearch(ctx context.Context, query string) string

	// Close releases the store.
	Close() error
}

// Option configures New.
type Option func(*options)

type options struct {
	provider  llm.VisionProvider
	searcher  search.Searcher
	fetcher   analysis.Fetcher
	noHistory bool
}

// WithProvider replaces the model client built from Config.LLM.
func WithProvider(p llm.VisionProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithSearcher replaces the Google searcher.
func WithSearcher(s search.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithFetcher replaces the HTTP file fetcher.
func WithFetcher(f analysis.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithoutHistory disables the SQLite store. Registration calls then fail
// with ErrStoreClosed and nothing is logged.
func WithoutHistory() Option {
	return func(o *options) { o.noHistory = true }
}

// assistant is the concrete implementation of Assistant.
type assistant struct {
	cfg        Config
	store      *store.Store
	describer  *describe.Describer
	analyzer   *analysis.Analyzer
	summarizer *search.Summarizer
}

// New wires every component from cfg.
func New(cfg Config, opts ...Option) (Assistant, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		p, err := llm.NewProvider(llm.Config{
			Provider:   cfg.LLM.Provider,
			Model:      cfg.LLM.Model,
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		o.provider = p
	}
	if o.searcher == nil {
		o.searcher = search.NewGoogle(cfg.Search)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.New(cfg.Fetch)
	}

	var s *store.Store
	if !o.noHistory {
		var err error
		s, err = store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	describer := describe.New(o.provider, imaging.NewNormalizer(cfg.Image), cfg.Describe)

	return &assistant{
		cfg:        cfg,
		store:      s,
		describer:  describer,
		analyzer:   analysis.NewAnalyzer(o.fetcher, describer, document.NewExtractor()),
		summarizer: search.NewSummarizer(o.searcher, describer, cfg.Search.Limit),
	}, nil
}

func (a *assistant) Start(ctx context.Context, chatID int64, firstName, username string) (bool, error) {
	if a.store == nil {
		return false, ErrStoreClosed
	}
	_, err := a.store.GetUser(ctx, chatID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("looking up user: %w", err)
	}

	if _, err := a.store.InsertUser(ctx, store.User{ChatID: chatID, FirstName: firstName, Username: username}); err != nil {
		return false, fmt.Errorf("registering user: %w", err)
	}
	slog.Info("docbot: registered user", "chat_id", chatID)
	return false, nil
}

func (a *assistant) SaveContact(ctx context.Context, chatID int64, phone string) error {
	if a.store == nil {
		return ErrStoreClosed
	}
	return a.store.SetPhoneNumber(ctx, chatID, phone)
}

func (a *assistant) Reply(ctx context.Context, chatID int64, text string) string {
	answer := a.describer.DescribeText(ctx, text)
	a.logChat(ctx, chatID, func(userID int64) error {
		return a.store.InsertChat(ctx, userID, text, answer)
	})
	return answer
}

func (a *assistant) AnalyzeFile(ctx context.Context, chatID int64, ref analysis.FileReference, filename string) string {
	report := a.analyzer.AnalyzeFile(ctx, ref)
	description := report.String()
	a.logChat(ctx, chatID, func(userID int64) error {
		return a.store.InsertFileAnalysis(ctx, userID, filename, report.Kind.String(), description)
	})
	return description
}

func (a *assistant) AnalyzeData(ctx context.Context, data []byte, contentType, filename string) string {
	return a.analyzer.AnalyzeData(ctx, data, contentType, filename).String()
}

func (a *assistant) WebSearch(ctx context.Context, query string) string {
	return a.summarizer.Search(ctx, query)
}

func (a *assistant) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// logChat appends to the conversation log. Failures are logged and
// otherwise ignored.
func (a *assistant) logChat(ctx context.Context, chatID int64, insert func(userID int64) error) {
	if a.store == nil {
		return
	}
	u, err := a.store.GetUser(ctx, chatID)
	if err != nil {
		slog.Warn("docbot: chat not logged", "chat_id", chatID, "error", err)
		return
	}
	if err := insert(u.ID); err != nil {
		slog.Warn("docbot: chat not logged", "chat_id", chatID, "error", err)
	}
}

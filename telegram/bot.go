// Package telegram connects the assistant to a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/brunobiangulo/docbot/analysis"
)

const DefaultPollTimeout = 60 * time.Second

// ErrNoToken is returned by New when no bot token is configured.
var ErrNoToken = errors.New("telegram: bot token is required")

// Config configures the bot connection.
type Config struct {
	Token       string        `json:"token" yaml:"token"`
	PollTimeout time.Duration `json:"poll_timeout" yaml:"poll_timeout" validate:"gte=0"`
	Debug       bool          `json:"debug" yaml:"debug"`
}

// Assistant is what the bot needs from the application.
type Assistant interface {
	Start(ctx context.Context, chatID int64, firstName, username string) (bool, error)
	SaveContact(ctx context.Context, chatID int64, phone string) error
	Reply(ctx context.Context, chatID int64, text string) string
	AnalyzeFile(ctx context.Context, chatID int64, ref analysis.FileReference, filename string) string
	WebSearch(ctx context.Context, query string) string
}

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot dispatches Telegram updates to the assistant one at a time.
type Bot struct {
	api         API
	assistant   Assistant
	pollTimeout time.Duration

	mu      sync.Mutex
	pending map[int64]bool // chats whose next text is a search query
}

// New connects to the Bot API with cfg.Token.
func New(cfg Config, assistant Assistant) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	slog.Info("telegram: authorized", "bot", api.Self.UserName)
	return NewWithAPI(api, assistant, cfg), nil
}

// NewWithAPI builds a Bot over an existing API client.
func NewWithAPI(api API, assistant Assistant, cfg Config) *Bot {
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Bot{
		api:         api,
		assistant:   assistant,
		pollTimeout: timeout,
		pending:     make(map[int64]bool),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	slog.Info("telegram: bot is running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes one update to completion.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Contact != nil:
		b.handleContact(ctx, msg)
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		b.handleFile(ctx, msg, largest.FileID, "image.jpg", "image/jpeg")
	case msg.Document != nil:
		b.handleFile(ctx, msg, msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		var first, username string
		if msg.From != nil {
			first, username = msg.From.FirstName, msg.From.UserName
		}
		registered, err := b.assistant.Start(ctx, chatID, first, username)
		if err != nil {
			slog.Error("telegram: start failed", "chat_id", chatID, "error", err)
			b.send(tgbotapi.NewMessage(chatID, msgError))
			return
		}
		if registered {
			b.send(tgbotapi.NewMessage(chatID, msgWelcomeBack))
			return
		}
		m := tgbotapi.NewMessage(chatID, msgWelcome)
		m.ReplyMarkup = contactKeyboard()
		b.send(m)

	case "websearch":
		if query := msg.CommandArguments(); query != "" {
			b.replyMarkdown(msg, b.assistant.WebSearch(ctx, query))
			return
		}
		b.setPending(chatID, true)
		b.reply(msg, msgSearchPrompt)

	default:
		slog.Debug("telegram: ignoring command", "command", msg.Command())
	}
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if err := b.assistant.SaveContact(ctx, chatID, msg.Contact.PhoneNumber); err != nil {
		slog.Error("telegram: saving contact failed", "chat_id", chatID, "error", err)
		b.send(tgbotapi.NewMessage(chatID, msgError))
		return
	}
	m := tgbotapi.NewMessage(chatID, msgRegistered)
	m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(m)
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if b.takePending(chatID) {
		b.replyMarkdown(msg, b.assistant.WebSearch(ctx, msg.Text))
		return
	}
	b.reply(msg, b.assistant.Reply(ctx, chatID, msg.Text))
}

func (b *Bot) handleFile(ctx context.Context, msg *tgbotapi.Message, fileID, filename, mimeType string) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		slog.Error("telegram: resolving file failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg, analysis.MsgFetchError)
		return
	}
	ref := analysis.FileReference{URL: fileURL, DeclaredContentType: mimeType}
	b.reply(msg, b.assistant.AnalyzeFile(ctx, msg.Chat.ID, ref, filename))
}

func (b *Bot) setPending(chatID int64, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v {
		b.pending[chatID] = true
	} else {
		delete(b.pending, chatID)
	}
}

func (b *Bot) takePending(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := b.pending[chatID]
	delete(b.pending, chatID)
	return ok
}

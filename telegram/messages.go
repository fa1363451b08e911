package telegram

import (
	"log/slog"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgWelcome      = "Welcome! Please share your contact to complete registration."
	msgWelcomeBack  = "Welcome back! How can I assist you today?"
	msgRegistered   = "Registration complete! How can I assist you?"
	msgSearchPrompt = "Please enter your search query:"
	msgError        = "An error occurred. Please try again later."

	// Telegram rejects longer messages.
	maxMessageLength = 4096
)

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("Share Contact")),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// reply sends text as a reply to msg, split to fit the message limit.
func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		m := tgbotapi.NewMessage(msg.Chat.ID, part)
		m.ReplyToMessageID = msg.MessageID
		b.send(m)
	}
}

// replyMarkdown is reply with Markdown formatting. A part Telegram refuses
// to parse is resent as plain text.
func (b *Bot) replyMarkdown(msg *tgbotapi.Message, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		m := tgbotapi.NewMessage(msg.Chat.ID, part)
		m.ReplyToMessageID = msg.MessageID
		m.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(m); err != nil {
			slog.Warn("telegram: markdown rejected, resending as plain text", "chat_id", msg.Chat.ID, "error", err)
			m.ParseMode = ""
			b.send(m)
		}
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("telegram: send failed", "error", err)
	}
}

// splitMessage cuts text into pieces of at most limit UTF-16 code units,
// the unit Telegram measures in, preferring to break after a newline. Runes
// are never split.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf16Len(text) > limit {
		cut := byteOffset(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > cut/2 {
			cut = nl + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteOffset returns the byte index just past the longest prefix of s that
// fits in n UTF-16 code units. At least one rune is kept.
func byteOffset(s string, n int) int {
	units := 0
	for pos, r := range s {
		units += utf16.RuneLen(r)
		if units > n {
			if pos == 0 {
				return utf8.RuneLen(r)
			}
			return pos
		}
	}
	return len(s)
}

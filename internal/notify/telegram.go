package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shopwatch/internal/pipeline"
	"shopwatch/internal/render"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends reports to one chat as HTML messages.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID, log), nil
}

func newTelegram(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

// Send splits the report into messages under the Telegram size limit.
// Reports without updates are sent without a notification sound.
func (t *Telegram) Send(ctx context.Context, report *pipeline.Report) error {
	chunks := Messages(report.Text)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		msg.DisableNotification = report.Silent
		if _, err := t.api.Send(msg); err != nil {
			return fmt.Errorf("send message %d/%d: %w", i+1, len(chunks), err)
		}
	}
	t.log.Debug("sent telegram report", "chat_id", t.chatID, "count", len(chunks))
	return nil
}

// Messages converts an HTML-fragment report into Telegram message texts.
// Telegram HTML has no <br>, so line breaks become newlines.
func Messages(text string) []string {
	parts := render.Split(text, render.TelegramLimit)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.ReplaceAll(p, "<br>", "\n"), "\n")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

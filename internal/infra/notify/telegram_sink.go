package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-video-studio/internal/domain/model"
	"ai-video-studio/internal/domain/ports/adapter"
)

var _ adapter.NotificationSink = (*TelegramSink)(nil)

// TelegramSink pushes operator-relevant events to a Telegram chat. Routine
// progress updates are dropped; only stalls, fallbacks and terminal job
// states are worth a message.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Publish(_ context.Context, ev model.Event) error {
	text := s.format(ev)
	if text == "" {
		return nil
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}

func (s *TelegramSink) format(ev model.Event) string {
	switch e := ev.(type) {
	case model.JobChangedEvent:
		if !e.Snapshot.Status.Terminal() {
			return ""
		}
		msg := fmt.Sprintf("Job %s finished: %s", e.Snapshot.ID, e.Snapshot.Status)
		if e.Snapshot.ErrorDetail != "" {
			msg += "\n" + e.Snapshot.ErrorDetail
		}
		return msg
	case model.StallSuspectedEvent:
		return fmt.Sprintf("Job %s: provider %s (%s) silent for %s, stall suspected",
			e.JobID, e.ProviderID, e.Category, e.Elapsed.Round(time.Second))
	case model.FallbackAppliedEvent:
		return fmt.Sprintf("Job %s: %s provider switched %s -> %s (%s)",
			e.Decision.JobID, e.Decision.Category,
			e.Decision.FromProvider, e.Decision.ToProvider, e.Decision.Reason)
	}
	return ""
}

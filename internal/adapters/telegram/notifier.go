package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

// Sender отправляет сообщения; *tgbotapi.BotAPI подходит.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет ответы команд в чат, разбивая длинный текст.
type Notifier struct {
	sender Sender
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправитель.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify отправляет текст частями. Останавливается на первой ошибке.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := n.sender.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

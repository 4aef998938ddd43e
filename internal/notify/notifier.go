package notify

import (
	"context"
	"fmt"

	"futures_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(ctx context.Context, chatID int64, msg string)
	Sendf(ctx context.Context, chatID int64, format string, args ...any)
}

// Telegram — пассивный нотифайер. Доставка best-effort: ошибка уходит
// в лог и никогда не ломает жизненный цикл сделки.
type Telegram struct {
	bot *tgbot.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		// без токена работаем вхолостую — удобно для локального запуска
		return &Telegram{}, nil
	}
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b}, nil
}

func (t *Telegram) Send(ctx context.Context, chatID int64, msg string) {
	if t == nil || t.bot == nil || chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(chatID, msg)); err != nil {
		logger.Error("telegram send failed: %v", err)
	}
}

func (t *Telegram) Sendf(ctx context.Context, chatID int64, format string, args ...any) {
	t.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

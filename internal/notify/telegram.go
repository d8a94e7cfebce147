package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"

	"marketpulse/internal/config"
)

// Telegram pushes messages to a single chat through the bot API.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegram(cfg config.TelegramNotifyConfig) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, content string) error {
	if t == nil || t.bot == nil {
		return fmt.Errorf("telegram notifier not configured")
	}
	_, err := t.bot.SendMessage(ctx, telegoutil.Message(telegoutil.ID(t.chatID), content))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

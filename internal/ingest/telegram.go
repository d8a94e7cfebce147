package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"marketpulse/internal/config"
)

// TelegramSource delivers channel posts from Telegram via bot long polling.
type TelegramSource struct {
	Logger *zap.Logger

	bot      *telego.Bot
	token    string
	channels map[int64]bool
	handler  Handler
}

var _ Source = (*TelegramSource)(nil)

func NewTelegramSource(cfg config.TelegramConfig, logger *zap.Logger) *TelegramSource {
	return &TelegramSource{
		Logger: logger,
		token:  cfg.Token,
	}
}

// Subscribe connects the bot and verifies each channel is reachable. The
// returned count only includes channels the bot could actually resolve.
func (s *TelegramSource) Subscribe(ctx context.Context, sourceIDs []int64, fn Handler) (int, error) {
	if s == nil || fn == nil {
		return 0, fmt.Errorf("telegram source misconfigured")
	}
	if s.token == "" {
		return 0, fmt.Errorf("telegram bot token is empty")
	}

	bot, err := telego.NewBot(s.token, telego.WithDefaultLogger(false, false))
	if err != nil {
		return 0, fmt.Errorf("telegram bot init: %w", err)
	}
	s.bot = bot

	subscribed := map[int64]bool{}
	for _, id := range sourceIDs {
		chat, err := bot.GetChat(ctx, &telego.GetChatParams{ChatID: telego.ChatID{ID: id}})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("channel unreachable", zap.Int64("channel_id", id), zap.Error(err))
			}
			continue
		}
		subscribed[id] = true
		if s.Logger != nil {
			s.Logger.Info("channel subscribed", zap.Int64("channel_id", id), zap.String("title", chat.Title))
		}
	}

	s.channels = subscribed
	s.handler = fn
	return len(subscribed), nil
}

// Run consumes updates until the context is cancelled. Only posts from
// subscribed channels reach the handler.
func (s *TelegramSource) Run(ctx context.Context) error {
	if s == nil || s.bot == nil || s.handler == nil {
		return fmt.Errorf("telegram source not subscribed")
	}

	updates, err := s.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"channel_post", "message"},
	})
	if err != nil {
		return fmt.Errorf("telegram long polling: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.ChannelPost
			if msg == nil {
				msg = update.Message
			}
			if msg == nil || !s.channels[msg.Chat.ID] {
				continue
			}
			s.handler(Message{
				Text:        msg.Text,
				SourceID:    msg.Chat.ID,
				SourceTitle: msg.Chat.Title,
				ReceivedAt:  time.Unix(msg.Date, 0).UTC(),
			})
		}
	}
}

func (s *TelegramSource) Close() error {
	// Long polling stops with the Run context; nothing to tear down here.
	return nil
}

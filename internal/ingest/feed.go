package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"marketpulse/internal/config"
)

// FeedSource consumes a self-hosted JSON message feed over websocket. Each
// frame carries one raw message; the source reconnects with jittered backoff
// when the stream drops.
type FeedSource struct {
	Logger *zap.Logger

	BackoffMin time.Duration
	BackoffMax time.Duration

	url      string
	channels []int64
	allowed  map[int64]bool
	handler  Handler
}

var _ Source = (*FeedSource)(nil)

type feedSubscribeRequest struct {
	Type    string  `json:"type"`
	Sources []int64 `json:"sources,omitempty"`
}

type feedFrame struct {
	Text        string `json:"text"`
	SourceID    int64  `json:"source_id"`
	SourceTitle string `json:"source_title"`
	Timestamp   string `json:"ts"`
}

func NewFeedSource(cfg config.FeedConfig, logger *zap.Logger) *FeedSource {
	return &FeedSource{
		Logger: logger,
		url:    strings.TrimSpace(cfg.URL),
	}
}

func (s *FeedSource) Subscribe(ctx context.Context, sourceIDs []int64, fn Handler) (int, error) {
	if s == nil || fn == nil {
		return 0, fmt.Errorf("feed source misconfigured")
	}
	if s.url == "" {
		return 0, fmt.Errorf("feed url is empty")
	}

	// Probe the endpoint once so a dead feed fails startup instead of
	// spinning in the reconnect loop forever.
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return 0, fmt.Errorf("feed dial: %w", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "probe")

	s.channels = sourceIDs
	s.allowed = map[int64]bool{}
	for _, id := range sourceIDs {
		s.allowed[id] = true
	}
	s.handler = fn
	return len(sourceIDs), nil
}

func (s *FeedSource) Run(ctx context.Context) error {
	if s == nil || s.handler == nil {
		return fmt.Errorf("feed source not subscribed")
	}

	backoffMin := s.BackoffMin
	if backoffMin <= 0 {
		backoffMin = time.Second
	}
	backoffMax := s.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	backoff := backoffMin
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && s.Logger != nil {
			s.Logger.Warn("feed stream dropped", zap.Error(err), zap.Duration("backoff", backoff))
		}

		jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (s *FeedSource) consume(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(1 << 20)

	payload, err := json.Marshal(feedSubscribeRequest{Type: "subscribe", Sources: s.channels})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Info("feed stream connected", zap.String("url", s.url), zap.Int("sources", len(s.channels)))
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var frame feedFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("feed frame malformed", zap.Error(err))
			}
			continue
		}
		if len(s.allowed) > 0 && !s.allowed[frame.SourceID] {
			continue
		}
		s.handler(Message{
			Text:        frame.Text,
			SourceID:    frame.SourceID,
			SourceTitle: frame.SourceTitle,
			ReceivedAt:  parseFrameTime(frame.Timestamp),
		})
	}
}

func (s *FeedSource) Close() error {
	return nil
}

func parseFrameTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

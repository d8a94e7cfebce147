package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Notifier delivers a rendered message to one outbound channel.
type Notifier interface {
	Send(ctx context.Context, content string) error
	Name() string
}

const truncationMarker = "\n\n... (truncated)"

// Truncate caps content at maxLength runes, appending a visible marker
// when anything was cut.
func Truncate(content string, maxLength int) string {
	if maxLength <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxLength {
		return content
	}
	marker := []rune(truncationMarker)
	keep := maxLength - len(marker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + truncationMarker
}

// Multi fans a message out to every configured channel. Delivery counts
// as successful when at least one channel accepts it.
type Multi struct {
	channels  []Notifier
	maxLength int
	logger    *zap.Logger
}

func NewMulti(maxLength int, logger *zap.Logger, channels ...Notifier) *Multi {
	return &Multi{channels: channels, maxLength: maxLength, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Channels() int {
	if m == nil {
		return 0
	}
	return len(m.channels)
}

func (m *Multi) Send(ctx context.Context, content string) error {
	if m == nil || len(m.channels) == 0 {
		return fmt.Errorf("no notification channels configured")
	}

	content = Truncate(content, m.maxLength)

	var failures []string
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(ctx, content); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ch.Name(), err))
			if m.logger != nil {
				m.logger.Warn("notification channel failed",
					zap.String("channel", ch.Name()),
					zap.Error(err))
			}
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("all channels failed: %s", strings.Join(failures, "; "))
	}
	return nil
}

package ingest

import (
	"context"
	"time"
)

// Message is one raw inbound message as delivered by a source.
type Message struct {
	Text        string
	SourceID    int64
	SourceTitle string
	ReceivedAt  time.Time
}

// Handler receives inbound messages. It must return quickly and must not
// block on I/O; sources call it inline on their receive loop.
type Handler func(msg Message)

// Source is a real-time message source. Subscribe registers the handler for
// the given source IDs and reports how many were actually subscribed; Run
// blocks delivering messages until the context is cancelled.
type Source interface {
	Subscribe(ctx context.Context, sourceIDs []int64, fn Handler) (int, error)
	Run(ctx context.Context) error
	Close() error
}

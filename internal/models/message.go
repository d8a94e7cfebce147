package models

import "time"

// QueuedMessage is a triaged message waiting for batch analysis.
// It lives only in the pending queue and is never persisted.
type QueuedMessage struct {
	Text        string
	SourceTitle string
	SourceID    int64
	Timestamp   time.Time
}

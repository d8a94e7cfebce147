package queue

import (
	"sync"

	"marketpulse/internal/models"
)

const DefaultCapacity = 200

// PendingQueue is a bounded FIFO buffer of triaged messages awaiting batch
// analysis. Offer never blocks: when full, the oldest entry is evicted to
// admit the newest. The ingestion callback and the batch job run on
// different goroutines, so both operations take the lock.
type PendingQueue struct {
	mu   sync.Mutex
	buf  []models.QueuedMessage
	head int
	size int
}

func NewPendingQueue(capacity int) *PendingQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PendingQueue{buf: make([]models.QueuedMessage, capacity)}
}

// Offer appends a message, evicting the oldest one when the buffer is full.
func (q *PendingQueue) Offer(msg models.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := (q.head + q.size) % len(q.buf)
	q.buf[tail] = msg
	if q.size < len(q.buf) {
		q.size++
		return
	}
	// Buffer full: the slot we just wrote was the oldest entry.
	q.head = (q.head + 1) % len(q.buf)
}

// DrainAll empties the queue and returns its prior contents in FIFO order.
func (q *PendingQueue) DrainAll() []models.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}
	out := make([]models.QueuedMessage, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.head = 0
	q.size = 0
	return out
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *PendingQueue) Cap() int {
	return len(q.buf)
}

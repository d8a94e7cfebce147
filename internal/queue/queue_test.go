package queue

import (
	"testing"

	"marketpulse/internal/models"
)

func msg(text string) models.QueuedMessage {
	return models.QueuedMessage{Text: text}
}

func TestOfferAndDrainFIFO(t *testing.T) {
	q := NewPendingQueue(5)
	q.Offer(msg("a"))
	q.Offer(msg("b"))
	q.Offer(msg("c"))

	if q.Len() != 3 {
		t.Fatalf("len=%d want=3", q.Len())
	}
	out := q.DrainAll()
	if len(out) != 3 || out[0].Text != "a" || out[1].Text != "b" || out[2].Text != "c" {
		t.Fatalf("drained=%v", out)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want=0 after drain", q.Len())
	}
}

func TestOfferEvictsOldestWhenFull(t *testing.T) {
	q := NewPendingQueue(2)
	q.Offer(msg("a"))
	q.Offer(msg("b"))
	q.Offer(msg("c"))

	if q.Len() != 2 {
		t.Fatalf("len=%d want=2", q.Len())
	}
	out := q.DrainAll()
	if len(out) != 2 || out[0].Text != "b" || out[1].Text != "c" {
		t.Fatalf("drained=%v want=[b c]", out)
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	q := NewPendingQueue(2)
	if out := q.DrainAll(); out != nil {
		t.Fatalf("drained=%v want=nil", out)
	}
	// Draining twice is safe.
	if out := q.DrainAll(); out != nil {
		t.Fatalf("drained=%v want=nil", out)
	}
}

func TestOfferAfterDrainReuses(t *testing.T) {
	q := NewPendingQueue(3)
	q.Offer(msg("a"))
	q.DrainAll()
	q.Offer(msg("b"))
	q.Offer(msg("c"))

	out := q.DrainAll()
	if len(out) != 2 || out[0].Text != "b" || out[1].Text != "c" {
		t.Fatalf("drained=%v want=[b c]", out)
	}
}

func TestDefaultCapacity(t *testing.T) {
	q := NewPendingQueue(0)
	if q.Cap() != DefaultCapacity {
		t.Fatalf("cap=%d want=%d", q.Cap(), DefaultCapacity)
	}
}

func TestWrapAroundKeepsOrder(t *testing.T) {
	q := NewPendingQueue(3)
	q.Offer(msg("a"))
	q.Offer(msg("b"))
	q.Offer(msg("c"))
	q.Offer(msg("d"))
	q.Offer(msg("e"))

	out := q.DrainAll()
	if len(out) != 3 || out[0].Text != "c" || out[1].Text != "d" || out[2].Text != "e" {
		t.Fatalf("drained=%v want=[c d e]", out)
	}
}

package monitor

import (
	"sync/atomic"
	"time"
)

// Stats tracks pipeline counters across the monitor lifetime.
type Stats struct {
	Total    atomic.Int64
	Queued   atomic.Int64
	Excluded atomic.Int64
	Analyzed atomic.Int64
	Valuable atomic.Int64
	Pushed   atomic.Int64

	startedAt atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total     int64     `json:"total_received"`
	Queued    int64     `json:"queued"`
	Excluded  int64     `json:"excluded"`
	Analyzed  int64     `json:"analyzed"`
	Valuable  int64     `json:"valuable"`
	Pushed    int64     `json:"pushed"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

func (s *Stats) markStarted(at time.Time) {
	s.startedAt.Store(at.UnixNano())
}

func (s *Stats) Snapshot() Snapshot {
	started := time.Unix(0, s.startedAt.Load())
	snap := Snapshot{
		Total:     s.Total.Load(),
		Queued:    s.Queued.Load(),
		Excluded:  s.Excluded.Load(),
		Analyzed:  s.Analyzed.Load(),
		Valuable:  s.Valuable.Load(),
		Pushed:    s.Pushed.Load(),
		StartedAt: started,
	}
	if s.startedAt.Load() > 0 {
		snap.Uptime = time.Since(started).Round(time.Second).String()
	}
	return snap
}

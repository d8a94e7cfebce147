package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/analysis"
	"marketpulse/internal/config"
	"marketpulse/internal/filter"
	"marketpulse/internal/ingest"
	"marketpulse/internal/models"
	"marketpulse/internal/notify"
	"marketpulse/internal/queue"
	"marketpulse/internal/repository"
)

// Analyzer is the analysis gateway the monitor schedules work against.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, batchText string, count int) analysis.BatchResult
	DigestNarrative(ctx context.Context, contextText string, stats repository.DailyStats) (string, error)
	TrendKeywords(ctx context.Context, asOf time.Time) (filter.Document, error)
}

// Monitor wires ingestion, triage, batching and the recurring jobs into one
// supervised pipeline.
type Monitor struct {
	Source   ingest.Source
	Channels []int64
	Engine   *filter.Engine
	Queue    *queue.PendingQueue
	Analyzer Analyzer
	Notifier notify.Notifier
	Repo     repository.Repository
	Jobs     config.JobsConfig
	Location *time.Location
	Logger   *zap.Logger

	Stats Stats

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Start subscribes the source and launches the pipeline goroutines. Calling
// Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	count, err := m.Source.Subscribe(runCtx, m.Channels, m.onMessage)
	if err != nil {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("subscribe sources: %w", err)
	}
	// A monitor with nothing to listen to must not come up as running.
	if count == 0 {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("no sources subscribed (%d configured)", len(m.Channels))
	}
	m.Logger.Info("sources subscribed",
		zap.Int("resolved", count),
		zap.Int("configured", len(m.Channels)),
	)
	m.Stats.markStarted(time.Now())

	m.wg.Add(4)
	go func() {
		defer m.wg.Done()
		if err := m.Source.Run(runCtx); err != nil && runCtx.Err() == nil {
			m.Logger.Error("ingestion stopped", zap.Error(err))
		}
	}()
	go func() {
		defer m.wg.Done()
		m.batchLoop(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		m.fixedTimeLoop(runCtx, "daily_digest", m.Jobs.DigestHour, m.Jobs.DigestMinute, m.runDigest)
	}()
	go func() {
		defer m.wg.Done()
		m.trendLoop(runCtx)
	}()

	m.Logger.Info("monitor started",
		zap.Duration("batch_interval", m.batchInterval()),
		zap.String("timezone", m.loc().String()),
	)
	return nil
}

// Stop cancels the pipeline and waits for all loops to drain. Safe to call
// more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	if err := m.Source.Close(); err != nil {
		m.Logger.Warn("source close", zap.Error(err))
	}

	snap := m.Stats.Snapshot()
	m.Logger.Info("monitor stopped",
		zap.Int64("total_received", snap.Total),
		zap.Int64("analyzed", snap.Analyzed),
		zap.Int64("pushed", snap.Pushed),
	)
}

// Run starts the monitor and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// onMessage is the ingestion callback. It must never panic into the source's
// read loop.
func (m *Monitor) onMessage(msg ingest.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Error("message handler panic", zap.Any("panic", r))
		}
	}()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	m.Stats.Total.Add(1)

	m.Logger.Debug("message received",
		zap.String("source", msg.SourceTitle),
		zap.String("preview", preview(text, 60)),
	)

	res := m.Engine.Classify(text)
	if res.Level == filter.LevelExcluded {
		m.Stats.Excluded.Add(1)
		m.Logger.Debug("message excluded", zap.String("reason", res.Reason))
		return
	}

	m.Queue.Offer(models.QueuedMessage{
		Text:        text,
		SourceID:    msg.SourceID,
		SourceTitle: msg.SourceTitle,
		Timestamp:   msg.ReceivedAt,
	})
	m.Stats.Queued.Add(1)
}

// fixedTimeLoop fires job at hour:minute local time each day. A failed run
// is retried after an hour instead of waiting for the next day.
func (m *Monitor) fixedTimeLoop(ctx context.Context, name string, hour, minute int, job func(context.Context) error) {
	for {
		now := time.Now().In(m.loc())
		next := NextFire(now, hour, minute)
		m.Logger.Info("job scheduled", zap.String("job", name), zap.Time("next", next))

		wait := time.Until(next)
		for {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := m.runCycle(ctx, name, job); err == nil {
				break
			} else {
				m.Logger.Error("job failed, retrying in 1h",
					zap.String("job", name),
					zap.Error(err),
				)
				wait = time.Hour
			}
		}
	}
}

// runCycle executes one job cycle. A panic inside the body counts as that
// cycle's failure and never escapes into the loop; cancellation is honored
// at the loop boundary, so a cycle already underway runs to completion
// against its own gateway timeouts.
func (m *Monitor) runCycle(ctx context.Context, name string, job func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.Logger.Error("job panic", zap.String("job", name), zap.Any("panic", r))
			err = fmt.Errorf("%s panic: %v", name, r)
		}
	}()
	return job(context.WithoutCancel(ctx))
}

func (m *Monitor) loc() *time.Location {
	if m.Location != nil {
		return m.Location
	}
	return time.UTC
}

func (m *Monitor) threshold() int {
	if m.Jobs.ImpactThreshold > 0 {
		return m.Jobs.ImpactThreshold
	}
	return 4
}

func (m *Monitor) batchInterval() time.Duration {
	if m.Jobs.BatchInterval > 0 {
		return m.Jobs.BatchInterval
	}
	return 5 * time.Minute
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

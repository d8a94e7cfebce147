package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/filter"
)

// trendLoop refreshes the dynamic keyword overlay once at startup, then at
// the configured time each day.
func (m *Monitor) trendLoop(ctx context.Context) {
	if err := m.runCycle(ctx, "trend_refresh", m.runTrend); err != nil {
		m.Logger.Warn("initial trend refresh failed", zap.Error(err))
	}
	m.fixedTimeLoop(ctx, "trend_refresh", m.Jobs.TrendHour, m.Jobs.TrendMinute, m.runTrend)
}

// runTrend fetches fresh trending keywords, persists them as the dynamic
// overlay and hot-swaps the filter snapshot. The base keyword file is never
// touched.
func (m *Monitor) runTrend(ctx context.Context) error {
	doc, err := m.Analyzer.TrendKeywords(ctx, time.Now().In(m.loc()))
	if err != nil {
		return fmt.Errorf("trend keywords: %w", err)
	}
	if err := filter.SaveOverlay(m.Engine.DataDir(), doc); err != nil {
		return fmt.Errorf("save overlay: %w", err)
	}
	if err := m.Engine.Reload(); err != nil {
		return fmt.Errorf("reload ruleset: %w", err)
	}

	high, medium, exclude := m.Engine.Counts()
	m.Logger.Info("trend keywords refreshed",
		zap.Int("high", high),
		zap.Int("medium", medium),
		zap.Int("exclude", exclude),
	)
	return nil
}

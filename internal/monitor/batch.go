package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/models"
)

func (m *Monitor) batchLoop(ctx context.Context) {
	ticker := time.NewTicker(m.batchInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Queue.Len() == 0 {
				continue
			}
			_ = m.runCycle(ctx, "batch_flush", func(ctx context.Context) error {
				m.processBatch(ctx)
				return nil
			})
		}
	}
}

// processBatch drains the pending queue, analyzes it in one call and pushes
// the actionable results. A gateway failure drops the batch: the drained
// messages are not re-queued.
func (m *Monitor) processBatch(ctx context.Context) {
	batch := m.Queue.DrainAll()
	if len(batch) == 0 {
		return
	}

	m.Logger.Info("processing batch", zap.Int("size", len(batch)))
	m.Stats.Analyzed.Add(int64(len(batch)))

	result := m.Analyzer.AnalyzeBatch(ctx, buildBatchText(batch), len(batch))
	if !result.Success {
		m.Logger.Warn("batch analysis failed",
			zap.Int("size", len(batch)),
			zap.String("error", result.Err),
		)
		return
	}

	now := time.Now().In(m.loc())
	threshold := m.threshold()

	var valuable []models.JudgedItem
	for _, item := range result.Items {
		if item.Magnitude < threshold {
			continue
		}
		judged := models.JudgedItem{
			Summary:          item.Summary,
			ImpactDirection:  item.Direction,
			ImpactMagnitude:  item.Magnitude,
			AffectedSectors:  models.SectorsJSON(item.Sectors),
			ActionSuggestion: item.Suggestion,
			AnalyzedAt:       now.UTC(),
			ReportDate:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		}
		if item.Index >= 1 && item.Index <= len(batch) {
			src := batch[item.Index-1]
			judged.SourceID = src.SourceID
			judged.SourceTitle = src.SourceTitle
		}
		valuable = append(valuable, judged)
	}
	m.Stats.Valuable.Add(int64(len(valuable)))

	if len(valuable) == 0 {
		m.Logger.Info("batch produced no actionable items",
			zap.Int("analyzed", len(result.Items)),
		)
		return
	}

	saved, err := m.Repo.SaveBatch(ctx, valuable)
	if err != nil {
		m.Logger.Error("persist batch failed", zap.Error(err))
		return
	}

	if err := m.Notifier.Send(ctx, formatBatchNotification(valuable, now)); err != nil {
		m.Logger.Warn("batch notification failed", zap.Error(err))
		return
	}
	m.Stats.Pushed.Add(1)

	m.Logger.Info("batch complete",
		zap.Int("analyzed", len(batch)),
		zap.Int("actionable", len(valuable)),
		zap.Int("saved", saved),
	)
}

// buildBatchText renders the drained messages into the numbered block the
// analysis prompt expects. Long messages are clipped to keep the batch
// inside the model context.
func buildBatchText(batch []models.QueuedMessage) string {
	var b strings.Builder
	for i, msg := range batch {
		text := msg.Text
		if runes := []rune(text); len(runes) > 200 {
			text = string(runes[:200]) + "..."
		}
		fmt.Fprintf(&b, "[%d] [%s] %s: %s\n\n", i+1, msg.Timestamp.Format("15:04"), msg.SourceTitle, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBatchNotification(items []models.JudgedItem, now time.Time) string {
	sorted := make([]models.JudgedItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImpactMagnitude > sorted[j].ImpactMagnitude
	})

	var b strings.Builder
	fmt.Fprintf(&b, "## 📡 Market Intelligence %s\n", now.Format("15:04"))
	fmt.Fprintf(&b, "**%d actionable item(s)**\n\n", len(sorted))
	for i, item := range sorted {
		fmt.Fprintf(&b, "%d. %s [%d/10] %s\n", i+1, directionEmoji(item.ImpactDirection), item.ImpactMagnitude, item.Summary)
		if sectors := item.Sectors(); len(sectors) > 0 {
			fmt.Fprintf(&b, "   Sectors: %s\n", strings.Join(sectors, ", "))
		}
		if item.ActionSuggestion != "" {
			fmt.Fprintf(&b, "   Action: %s\n", item.ActionSuggestion)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func directionEmoji(direction string) string {
	switch direction {
	case models.DirectionBullish:
		return "📈"
	case models.DirectionBearish:
		return "📉"
	default:
		return "➖"
	}
}

package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/models"
	"marketpulse/internal/repository"
)

const digestContextLimit = 20

// runDigest builds and pushes the daily report for yesterday. A day with no
// actionable items is skipped without a notification.
func (m *Monitor) runDigest(ctx context.Context) error {
	yesterday := time.Now().In(m.loc()).AddDate(0, 0, -1)

	items, err := m.Repo.ListDailyItems(ctx, yesterday, m.threshold())
	if err != nil {
		return fmt.Errorf("list daily items: %w", err)
	}
	if len(items) == 0 {
		m.Logger.Info("no actionable items, digest skipped",
			zap.String("date", yesterday.Format("2006-01-02")),
		)
		return nil
	}

	stats, err := m.Repo.DailyStats(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("daily stats: %w", err)
	}

	narrative, err := m.Analyzer.DigestNarrative(ctx, digestContext(items), stats)
	if err != nil {
		return fmt.Errorf("digest narrative: %w", err)
	}

	report := formatDigest(yesterday, stats, items, narrative)
	if err := m.Notifier.Send(ctx, report); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	m.Logger.Info("daily digest sent",
		zap.String("date", yesterday.Format("2006-01-02")),
		zap.Int("items", len(items)),
	)

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	// The digest is already out; a marking failure must not trigger a retry
	// that would push it twice.
	if err := m.Repo.MarkReported(ctx, ids); err != nil {
		m.Logger.Error("mark reported failed", zap.Error(err))
	}
	return nil
}

// digestContext renders the top items into the prompt context block.
func digestContext(items []models.JudgedItem) string {
	limit := len(items)
	if limit > digestContextLimit {
		limit = digestContextLimit
	}
	var b strings.Builder
	for _, item := range items[:limit] {
		fmt.Fprintf(&b, "- [%d/10 %s] %s", item.ImpactMagnitude, item.ImpactDirection, item.Summary)
		if sectors := item.Sectors(); len(sectors) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(sectors, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDigest(date time.Time, stats repository.DailyStats, items []models.JudgedItem, narrative string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 📊 Daily Market Digest — %s\n\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Analyzed:** %d | **Actionable:** %d\n", stats.TotalCount, stats.ValuableCount)
	fmt.Fprintf(&b, "**Bullish:** %d | **Bearish:** %d\n", stats.BullishCount, stats.BearishCount)
	if len(stats.Sectors) > 0 {
		parts := make([]string, 0, len(stats.Sectors))
		for _, s := range stats.Sectors {
			parts = append(parts, fmt.Sprintf("%s(%d)", s.Name, s.Count))
		}
		fmt.Fprintf(&b, "**Hot sectors:** %s\n", strings.Join(parts, ", "))
	}

	if narrative != "" {
		b.WriteString("\n## Synopsis\n")
		b.WriteString(narrative)
		b.WriteString("\n")
	}

	var high, medium []models.JudgedItem
	for _, item := range items {
		if item.ImpactMagnitude >= 7 {
			high = append(high, item)
		} else {
			medium = append(medium, item)
		}
	}
	writeDigestSection(&b, "## 🔥 High impact", high)
	writeDigestSection(&b, "## 📌 Worth tracking", medium)

	return strings.TrimRight(b.String(), "\n")
}

func writeDigestSection(b *strings.Builder, heading string, items []models.JudgedItem) {
	if len(items) == 0 {
		return
	}
	if len(items) > 5 {
		items = items[:5]
	}
	b.WriteString("\n" + heading + "\n")
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s [%d/10] %s\n", i+1, directionEmoji(item.ImpactDirection), item.ImpactMagnitude, item.Summary)
		if item.ActionSuggestion != "" {
			fmt.Fprintf(b, "   Action: %s\n", item.ActionSuggestion)
		}
	}
}

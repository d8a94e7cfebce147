package gormrepository

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"marketpulse/internal/models"
	"marketpulse/internal/repository"
)

type Repo struct {
	db *gorm.DB
}

var _ repository.Repository = (*Repo)(nil)

func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) SaveBatch(ctx context.Context, items []models.JudgedItem) (int, error) {
	if r == nil || r.db == nil || len(items) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return 0, err
	}
	return len(items), nil
}

func (r *Repo) ListDailyItems(ctx context.Context, date time.Time, minImpact int) ([]models.JudgedItem, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	var items []models.JudgedItem
	err := r.db.WithContext(ctx).
		Where("report_date = ? AND impact_magnitude >= ?", dateOnly(date), minImpact).
		Order("impact_magnitude DESC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

const valuableThreshold = 4

func (r *Repo) DailyStats(ctx context.Context, date time.Time) (repository.DailyStats, error) {
	stats := repository.DailyStats{Date: dateOnly(date).Format("2006-01-02")}
	if r == nil || r.db == nil {
		return stats, nil
	}

	var items []models.JudgedItem
	err := r.db.WithContext(ctx).
		Where("report_date = ?", dateOnly(date)).
		Find(&items).Error
	if err != nil {
		return stats, err
	}

	stats.TotalCount = len(items)
	sectorCounts := map[string]int{}
	for _, item := range items {
		if item.ImpactMagnitude < valuableThreshold {
			continue
		}
		stats.ValuableCount++
		switch item.ImpactDirection {
		case models.DirectionBullish:
			stats.BullishCount++
		case models.DirectionBearish:
			stats.BearishCount++
		}
		for _, s := range item.Sectors() {
			sectorCounts[s]++
		}
	}

	stats.Sectors = topSectors(sectorCounts, 10)
	return stats, nil
}

func (r *Repo) MarkReported(ctx context.Context, ids []uint64) error {
	if r == nil || r.db == nil || len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.JudgedItem{}).
		Where("id IN ?", ids).
		Update("reported", true).Error
}

func (r *Repo) DeleteReportedBefore(ctx context.Context, before time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("reported = ? AND report_date < ?", true, dateOnly(before)).
		Delete(&models.JudgedItem{})
	return res.RowsAffected, res.Error
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// topSectors ranks sectors by frequency; ties break alphabetically so the
// ranking is stable across runs.
func topSectors(counts map[string]int, limit int) []repository.SectorCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]repository.SectorCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, repository.SectorCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package repository

import (
	"context"
	"time"

	"marketpulse/internal/models"
)

// SectorCount is one entry of the per-day sector frequency ranking.
type SectorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyStats aggregates one report date's judged items.
type DailyStats struct {
	Date          string        `json:"date"`
	TotalCount    int           `json:"total_count"`
	ValuableCount int           `json:"valuable_count"`
	BullishCount  int           `json:"bullish_count"`
	BearishCount  int           `json:"bearish_count"`
	Sectors       []SectorCount `json:"sectors"`
}

// Repository is the persistence gateway for judged items.
type Repository interface {
	SaveBatch(ctx context.Context, items []models.JudgedItem) (int, error)
	ListDailyItems(ctx context.Context, date time.Time, minImpact int) ([]models.JudgedItem, error)
	DailyStats(ctx context.Context, date time.Time) (DailyStats, error)
	MarkReported(ctx context.Context, ids []uint64) error
	DeleteReportedBefore(ctx context.Context, before time.Time) (int64, error)
}

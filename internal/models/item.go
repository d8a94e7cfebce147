package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Impact directions as the analysis gateway is required to emit them.
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
	DirectionNeutral = "neutral"
)

// JudgedItem is one analyzed judgment persisted for daily reporting.
type JudgedItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	SourceID    int64  `gorm:"index" json:"source_id"`
	SourceTitle string `gorm:"type:varchar(200)" json:"source_title"`

	Summary          string         `gorm:"type:varchar(500)" json:"summary"`
	ImpactDirection  string         `gorm:"type:varchar(10);index" json:"impact_direction"`
	ImpactMagnitude  int            `gorm:"not null;default:0;index" json:"impact_magnitude"`
	AffectedSectors  datatypes.JSON `gorm:"type:jsonb" json:"affected_sectors"`
	ActionSuggestion string         `gorm:"type:varchar(500)" json:"action_suggestion"`

	AnalyzedAt time.Time `gorm:"type:timestamptz" json:"analyzed_at"`
	ReportDate time.Time `gorm:"type:date;index" json:"report_date"`
	Reported   bool      `gorm:"default:false;index" json:"reported"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (JudgedItem) TableName() string {
	return "judged_items"
}

// Sectors decodes the stored sector list; nil on malformed or empty payloads.
func (i JudgedItem) Sectors() []string {
	if len(i.AffectedSectors) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(i.AffectedSectors, &out); err != nil {
		return nil
	}
	return out
}

func SectorsJSON(sectors []string) datatypes.JSON {
	if len(sectors) == 0 {
		return datatypes.JSON([]byte(`[]`))
	}
	raw, err := json.Marshal(sectors)
	if err != nil {
		return datatypes.JSON([]byte(`[]`))
	}
	return datatypes.JSON(raw)
}

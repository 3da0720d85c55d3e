package models

import "time"

// Timeframe задаёт длину периода соревнования, соответствует ENUM в БД.
type Timeframe string

const (
	TimeframeWeekly    Timeframe = "WEEKLY"
	TimeframeMonthly   Timeframe = "MONTHLY"
	TimeframeQuarterly Timeframe = "QUARTERLY"
	TimeframeYearly    Timeframe = "YEARLY"
	TimeframeAllTime   Timeframe = "ALL_TIME"
)

func (t Timeframe) IsValid() bool {
	switch t {
	case TimeframeWeekly, TimeframeMonthly, TimeframeQuarterly, TimeframeYearly, TimeframeAllTime:
		return true
	}
	return false
}

// Leaderboard is a named, recurring competition definition.
// ParticipantType is fixed at creation and never changes.
type Leaderboard struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	ParticipantType ParticipantType `json:"participant_type" db:"participant_type"`
	Timeframe       Timeframe       `json:"timeframe" db:"timeframe"`
	HigherIsBetter  bool            `json:"higher_is_better" db:"higher_is_better"`
	MetricName      string          `json:"metric_name" db:"metric_name"`
	MetricUnit      *string         `json:"metric_unit,omitempty" db:"metric_unit"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Prizes        []Prize `json:"prizes,omitempty" db:"-"`
	CurrentPeriod *Period `json:"current_period,omitempty" db:"-"`
}

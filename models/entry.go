package models

import "time"

// Entry is one participant's standing within one period.
// Rank stays nil until the period is finalized.
type Entry struct {
	ID           string      `json:"id" db:"id"`
	PeriodID     string      `json:"period_id" db:"period_id"`
	Participant  Participant `json:"participant" db:"-"`
	Score        float64     `json:"score" db:"score"`
	Rank         *int        `json:"rank,omitempty" db:"rank"`
	PreviousRank *int        `json:"previous_rank,omitempty" db:"previous_rank"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

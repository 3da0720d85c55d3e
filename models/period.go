package models

import "time"

// PeriodStatus представляет статусы периода, соответствующие ENUM в БД.
type PeriodStatus string

const (
	PeriodStatusActive    PeriodStatus = "ACTIVE"
	PeriodStatusCompleted PeriodStatus = "COMPLETED"
	PeriodStatusArchived  PeriodStatus = "ARCHIVED"
)

// IsTerminal reports whether the status may be the outcome of a finalize.
func (s PeriodStatus) IsTerminal() bool {
	return s == PeriodStatusCompleted || s == PeriodStatusArchived
}

// Period is one time-boxed instance of a leaderboard's competition.
// StartDate and EndDate are UTC and inclusive.
type Period struct {
	ID            string       `json:"id" db:"id"`
	LeaderboardID string       `json:"leaderboard_id" db:"leaderboard_id"`
	Name          string       `json:"name" db:"name"`
	StartDate     time.Time    `json:"start_date" db:"start_date"`
	EndDate       time.Time    `json:"end_date" db:"end_date"`
	Status        PeriodStatus `json:"status" db:"status"`
	FinalizedAt   *time.Time   `json:"finalized_at,omitempty" db:"finalized_at"`
	FinalizedByID *string      `json:"finalized_by_id,omitempty" db:"finalized_by_id"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

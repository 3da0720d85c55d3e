package models

import "time"

const EventPeriodFinalized = "PERIOD_FINALIZED"

// PeriodFinalizedEvent is emitted once a finalize transaction has committed.
type PeriodFinalizedEvent struct {
	Type          string       `json:"type"`
	LeaderboardID string       `json:"leaderboard_id"`
	PeriodID      string       `json:"period_id"`
	PeriodName    string       `json:"period_name"`
	Status        PeriodStatus `json:"status"`
	FinalizedAt   time.Time    `json:"finalized_at"`
	FinalizedBy   string       `json:"finalized_by"`
	RankedEntries int          `json:"ranked_entries"`
	Winners       []Winner     `json:"winners"`
	Entries       []Entry      `json:"entries,omitempty"`
}

// Summary drops the full entry list; broadcast and bus consumers only need
// the winners.
func (e PeriodFinalizedEvent) Summary() PeriodFinalizedEvent {
	e.Entries = nil
	return e
}

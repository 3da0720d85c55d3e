package models

import "time"

const PrizeStatusPending = "pending"

// Winner ties a finalized period and a prize to the participant that earned it.
// FinalScore is a snapshot taken at finalize time.
type Winner struct {
	ID          string      `json:"id" db:"id"`
	PeriodID    string      `json:"period_id" db:"period_id"`
	PrizeID     string      `json:"prize_id" db:"prize_id"`
	Participant Participant `json:"participant" db:"-"`
	Position    int         `json:"position" db:"position"`
	FinalScore  float64     `json:"final_score" db:"final_score"`
	PrizeStatus string      `json:"prize_status" db:"prize_status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	Prize *Prize `json:"prize,omitempty" db:"-"`
}

package models

// Prize belongs to exactly one leaderboard. Position is a 1-based rank
// threshold, unique within the leaderboard.
type Prize struct {
	ID            string  `json:"id" db:"id"`
	LeaderboardID string  `json:"leaderboard_id" db:"leaderboard_id"`
	Position      int     `json:"position" db:"position"`
	Name          string  `json:"name" db:"name"`
	PrizeType     string  `json:"prize_type" db:"prize_type"`
	PrizeValue    *string `json:"prize_value,omitempty" db:"prize_value"`
}

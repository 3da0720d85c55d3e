package ranking

import (
	"sort"

	"github.com/Dosada05/studio-leaderboards/models"
)

// AssignWinners pairs each prize with the entry holding the prize's position in
// the sorted slice. Prizes are processed in ascending position order; a prize
// whose position has no entry is skipped. ID and CreatedAt are left for the
// caller to fill in.
func AssignWinners(periodID string, sorted []models.Entry, prizes []models.Prize) []models.Winner {
	ordered := make([]models.Prize, len(prizes))
	copy(ordered, prizes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	winners := make([]models.Winner, 0, min(len(sorted), len(ordered)))
	for _, prize := range ordered {
		if prize.Position < 1 || prize.Position > len(sorted) {
			continue
		}
		entry := sorted[prize.Position-1]
		winners = append(winners, models.Winner{
			PeriodID:    periodID,
			PrizeID:     prize.ID,
			Participant: entry.Participant,
			Position:    prize.Position,
			FinalScore:  entry.Score,
			PrizeStatus: models.PrizeStatusPending,
		})
	}
	return winners
}

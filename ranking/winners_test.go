package ranking

import (
	"testing"

	"github.com/Dosada05/studio-leaderboards/models"
)

func prize(id string, position int) models.Prize {
	return models.Prize{ID: id, LeaderboardID: "lb-1", Position: position, Name: id, PrizeType: "badge"}
}

func TestAssignWinnersMapsPositions(t *testing.T) {
	sorted, _ := AssignRanks([]models.Entry{entry("a", 10), entry("b", 8), entry("c", 5)}, true)

	winners := AssignWinners("period-1", sorted, []models.Prize{prize("second", 2), prize("first", 1)})

	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(winners))
	}
	if winners[0].PrizeID != "first" || winners[0].Participant != sorted[0].Participant || winners[0].FinalScore != 10 {
		t.Fatalf("unexpected first winner %+v", winners[0])
	}
	if winners[1].PrizeID != "second" || winners[1].Position != 2 || winners[1].FinalScore != 8 {
		t.Fatalf("unexpected second winner %+v", winners[1])
	}
	for _, w := range winners {
		if w.PrizeStatus != models.PrizeStatusPending {
			t.Fatalf("expected pending prize status, got %q", w.PrizeStatus)
		}
		if w.PeriodID != "period-1" {
			t.Fatalf("expected period-1, got %q", w.PeriodID)
		}
	}
}

func TestAssignWinnersFewerEntriesThanPrizes(t *testing.T) {
	sorted, _ := AssignRanks([]models.Entry{entry("a", 10)}, true)

	winners := AssignWinners("period-1", sorted, []models.Prize{prize("p1", 1), prize("p2", 2), prize("p3", 3)})

	if len(winners) != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", len(winners))
	}
	if winners[0].PrizeID != "p1" {
		t.Fatalf("expected p1 winner, got %s", winners[0].PrizeID)
	}
}

func TestAssignWinnersSparsePositions(t *testing.T) {
	sorted, _ := AssignRanks([]models.Entry{entry("a", 3), entry("b", 2), entry("c", 1)}, true)

	winners := AssignWinners("period-1", sorted, []models.Prize{prize("p3", 3), prize("p10", 10)})

	if len(winners) != 1 || winners[0].Participant != sorted[2].Participant {
		t.Fatalf("expected only position 3 to be awarded, got %+v", winners)
	}
}

func TestAssignWinnersNoEntries(t *testing.T) {
	if winners := AssignWinners("period-1", nil, []models.Prize{prize("p1", 1)}); len(winners) != 0 {
		t.Fatalf("expected no winners, got %d", len(winners))
	}
}

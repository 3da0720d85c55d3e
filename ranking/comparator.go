// Package ranking orders period entries and projects them onto prizes.
//
// Ties on score are broken by entry id, so every entry gets its own rank:
// scores [10, 10, 5] always rank 1, 2, 3 and never 1, 1, 3.
package ranking

import (
	"sort"
	"strings"

	"github.com/Dosada05/studio-leaderboards/models"
)

// CompareEntries returns a negative number when a ranks before b, a positive
// number when b ranks before a, and zero only for entries with the same id.
func CompareEntries(a, b models.Entry, higherIsBetter bool) int {
	if a.Score != b.Score {
		if (a.Score > b.Score) == higherIsBetter {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// SortEntries returns a sorted copy of entries; the input slice is left untouched.
func SortEntries(entries []models.Entry, higherIsBetter bool) []models.Entry {
	sorted := make([]models.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareEntries(sorted[i], sorted[j], higherIsBetter) < 0
	})
	return sorted
}

// RankAssignment is the rank computed for a single entry.
type RankAssignment struct {
	EntryID string
	Rank    int
}

// AssignRanks sorts entries and sets Rank = index + 1 on the returned copy.
func AssignRanks(entries []models.Entry, higherIsBetter bool) ([]models.Entry, []RankAssignment) {
	sorted := SortEntries(entries, higherIsBetter)
	assignments := make([]RankAssignment, len(sorted))
	for i := range sorted {
		rank := i + 1
		sorted[i].Rank = &rank
		assignments[i] = RankAssignment{EntryID: sorted[i].ID, Rank: rank}
	}
	return sorted, assignments
}

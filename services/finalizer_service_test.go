package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
)

var (
	marchStart = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	marchEnd   = time.Date(2024, time.March, 31, 23, 59, 59, 999_000_000, time.UTC)
)

func seedFinalizeFixture(env *testEnv, higherIsBetter bool, prizes int, entries ...models.Entry) {
	var list []models.Prize
	for pos := 1; pos <= prizes; pos++ {
		list = append(list, prize("prize-"+string(rune('0'+pos)), "lb-1", pos))
	}
	env.store.addLeaderboard(studioBoard("lb-1", higherIsBetter), list...)
	env.store.addPeriod(activePeriod("p-1", "lb-1", marchStart, marchEnd))
	env.store.addEntries("p-1", entries...)
}

func rankOf(t *testing.T, e models.Entry) int {
	t.Helper()
	if e.Rank == nil {
		t.Fatalf("entry %s has no rank", e.ID)
	}
	return *e.Rank
}

func TestFinalize_AssignsDistinctRanksOnTies(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 0,
		entry("e-c", "studio-c", 5),
		entry("e-b", "studio-b", 10),
		entry("e-a", "studio-a", 10),
	)

	res, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.RankedEntries != 3 || res.WinnersCreated != 0 {
		t.Fatalf("result = %+v, want 3 ranked and 0 winners", res)
	}

	want := map[string]int{"e-a": 1, "e-b": 2, "e-c": 3}
	for id, rank := range want {
		if got := rankOf(t, env.store.entryByID("p-1", id)); got != rank {
			t.Errorf("rank of %s = %d, want %d", id, got, rank)
		}
	}

	p := env.store.period("p-1")
	if p.Status != models.PeriodStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", p.Status)
	}
	if p.FinalizedAt == nil || !p.FinalizedAt.Equal(fixedNow) {
		t.Errorf("finalized_at = %v, want %v", p.FinalizedAt, fixedNow)
	}
	if p.FinalizedByID == nil || *p.FinalizedByID != "admin-1" {
		t.Errorf("finalized_by = %v, want admin-1", p.FinalizedByID)
	}
}

func TestFinalize_LowerIsBetter(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, false, 1,
		entry("e-1", "studio-1", 42.5),
		entry("e-2", "studio-2", 12),
	)

	if _, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if got := rankOf(t, env.store.entryByID("p-1", "e-2")); got != 1 {
		t.Fatalf("lowest score rank = %d, want 1", got)
	}
	winners := env.store.winnersOf("p-1")
	if len(winners) != 1 || winners[0].Participant.ID != "studio-2" {
		t.Fatalf("winners = %+v, want studio-2 in first place", winners)
	}
}

func TestFinalize_SnapshotsWinnersPerPrize(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 2,
		entry("e-1", "studio-1", 30),
		entry("e-2", "studio-2", 20),
		entry("e-3", "studio-3", 10),
	)

	res, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.WinnersCreated != 2 {
		t.Fatalf("winners created = %d, want 2", res.WinnersCreated)
	}

	// Later score changes must not leak into the snapshot.
	env.store.setScore("p-1", "e-1", 999)

	winners := env.store.winnersOf("p-1")
	if len(winners) != 2 {
		t.Fatalf("stored winners = %d, want 2", len(winners))
	}
	for _, w := range winners {
		if w.ID == "" {
			t.Errorf("winner for %s has no id", w.PrizeID)
		}
		if w.PrizeStatus != models.PrizeStatusPending {
			t.Errorf("prize status = %q, want pending", w.PrizeStatus)
		}
		switch w.Position {
		case 1:
			if w.Participant.ID != "studio-1" || w.FinalScore != 30 {
				t.Errorf("first place = %+v", w)
			}
		case 2:
			if w.Participant.ID != "studio-2" || w.FinalScore != 20 {
				t.Errorf("second place = %+v", w)
			}
		default:
			t.Errorf("unexpected position %d", w.Position)
		}
	}
}

func TestFinalize_FewerEntriesThanPrizes(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 3, entry("e-1", "studio-1", 7))

	res, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.WinnersCreated != 1 {
		t.Fatalf("winners created = %d, want 1", res.WinnersCreated)
	}
	if w := env.store.winnersOf("p-1"); len(w) != 1 || w[0].Position != 1 {
		t.Fatalf("winners = %+v", w)
	}
}

func TestFinalize_EmptyPeriod(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 2)

	res, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.RankedEntries != 0 || res.WinnersCreated != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := env.store.period("p-1").Status; got != models.PeriodStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
}

func TestFinalize_ReFinalizeWithExplicitStatusIsIdempotent(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 2,
		entry("e-1", "studio-1", 30),
		entry("e-2", "studio-2", 20),
		entry("e-3", "studio-3", 10),
	)
	ctx := context.Background()

	if _, err := env.finalizer.Finalize(ctx, "p-1", "admin-1", FinalizeOptions{}); err != nil {
		t.Fatalf("first Finalize() error = %v", err)
	}
	first := env.store.winnersOf("p-1")

	archived := models.PeriodStatusArchived
	res, err := env.finalizer.Finalize(ctx, "p-1", "admin-2", FinalizeOptions{Status: &archived})
	if err != nil {
		t.Fatalf("second Finalize() error = %v", err)
	}
	if res.WinnersCreated != len(first) {
		t.Fatalf("winners created = %d, want %d", res.WinnersCreated, len(first))
	}

	second := env.store.winnersOf("p-1")
	if len(second) != len(first) {
		t.Fatalf("winners after re-finalize = %d, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].PrizeID != second[i].PrizeID || first[i].Participant != second[i].Participant {
			t.Errorf("winner %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
	if got := rankOf(t, env.store.entryByID("p-1", "e-3")); got != 3 {
		t.Errorf("rank of e-3 = %d, want 3", got)
	}
	if got := env.store.period("p-1").Status; got != models.PeriodStatusArchived {
		t.Errorf("status = %s, want ARCHIVED", got)
	}
}

func TestFinalize_AlreadyFinalizedWithoutStatus(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 1, entry("e-1", "studio-1", 1))
	ctx := context.Background()

	if _, err := env.finalizer.Finalize(ctx, "p-1", "admin-1", FinalizeOptions{}); err != nil {
		t.Fatalf("first Finalize() error = %v", err)
	}
	_, err := env.finalizer.Finalize(ctx, "p-1", "admin-1", FinalizeOptions{})
	if !errors.Is(err, ErrPeriodAlreadyFinalized) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrPeriodAlreadyFinalized", err)
	}
}

func TestFinalize_RollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"BatchCreate", "MarkFinalized"} {
		t.Run(op, func(t *testing.T) {
			env := newTestEnv()
			seedFinalizeFixture(env, true, 2,
				entry("e-1", "studio-1", 30),
				entry("e-2", "studio-2", 20),
			)
			env.store.failOn[op] = errInjected

			_, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{})
			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("error = %v, want *StorageError", err)
			}
			if !errors.Is(err, errInjected) {
				t.Fatalf("error = %v, want wrapped injected failure", err)
			}

			if got := env.store.period("p-1").Status; got != models.PeriodStatusActive {
				t.Errorf("status = %s, want ACTIVE after rollback", got)
			}
			for _, id := range []string{"e-1", "e-2"} {
				if e := env.store.entryByID("p-1", id); e.Rank != nil {
					t.Errorf("entry %s rank = %d, want nil after rollback", id, *e.Rank)
				}
			}
			if w := env.store.winnersOf("p-1"); len(w) != 0 {
				t.Errorf("winners = %d, want 0 after rollback", len(w))
			}
			if n := len(env.events.received()); n != 0 {
				t.Errorf("observer notified %d times for a rolled back finalize", n)
			}
		})
	}
}

func TestFinalize_PeriodNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.finalizer.Finalize(context.Background(), "missing", "admin-1", FinalizeOptions{})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Resource != "period" {
		t.Fatalf("error = %v, want period NotFoundError", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want errors.Is ErrNotFound", err)
	}
}

func TestFinalize_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 0)
	active := models.PeriodStatusActive
	bogus := models.PeriodStatus("PAUSED")

	tests := []struct {
		name        string
		finalizedBy string
		status      *models.PeriodStatus
		want        error
	}{
		{"active status", "admin-1", &active, ErrInvalidStatus},
		{"unknown status", "admin-1", &bogus, ErrInvalidStatus},
		{"missing actor", "  ", nil, ErrFinalizedByRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.finalizer.Finalize(context.Background(), "p-1", tt.finalizedBy, FinalizeOptions{Status: tt.status})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if env.store.txCount != 0 {
		t.Fatalf("transactions opened = %d, want 0", env.store.txCount)
	}
}

func TestFinalize_NotifiesObservers(t *testing.T) {
	env := newTestEnv()
	seedFinalizeFixture(env, true, 1,
		entry("e-1", "studio-1", 30),
		entry("e-2", "studio-2", 20),
	)
	env.events.err = errors.New("observer down")

	if _, err := env.finalizer.Finalize(context.Background(), "p-1", "admin-1", FinalizeOptions{}); err != nil {
		t.Fatalf("Finalize() error = %v, observer errors must not fail the call", err)
	}

	events := env.events.received()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != models.EventPeriodFinalized || ev.LeaderboardID != "lb-1" || ev.PeriodID != "p-1" {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Winners) != 1 || len(ev.Entries) != 2 {
		t.Errorf("event winners = %d entries = %d, want 1 and 2", len(ev.Winners), len(ev.Entries))
	}
	if s := ev.Summary(); s.Entries != nil || len(s.Winners) != 1 {
		t.Errorf("summary = %+v", s)
	}
}

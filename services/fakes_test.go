package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/ranking"
	"github.com/Dosada05/studio-leaderboards/repositories"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory stand-in for the database. RunInTx serialises
// transactions and restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	leaderboards map[string]models.Leaderboard
	prizes       map[string][]models.Prize
	periods      map[string]models.Period
	entries      map[string][]models.Entry
	winners      map[string][]models.Winner

	failOn            map[string]error
	brokenLeaderboard string
	txCount           int
}

func newMemStore() *memStore {
	return &memStore{
		leaderboards: map[string]models.Leaderboard{},
		prizes:       map[string][]models.Prize{},
		periods:      map[string]models.Period{},
		entries:      map[string][]models.Entry{},
		winners:      map[string][]models.Winner{},
		failOn:       map[string]error{},
	}
}

type memSnapshot struct {
	periods map[string]models.Period
	entries map[string][]models.Entry
	winners map[string][]models.Winner
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		periods: make(map[string]models.Period, len(s.periods)),
		entries: make(map[string][]models.Entry, len(s.entries)),
		winners: make(map[string][]models.Winner, len(s.winners)),
	}
	for k, v := range s.periods {
		snap.periods[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = append([]models.Entry(nil), v...)
	}
	for k, v := range s.winners {
		snap.winners[k] = append([]models.Winner(nil), v...)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = snap.periods
	s.entries = snap.entries
	s.winners = snap.winners
}

func (s *memStore) fail(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failOn[op]
}

func (s *memStore) RunInTx(ctx context.Context, fn repositories.TxFunc) error {
	if fn == nil {
		return repositories.ErrNilTxFunc
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- fixtures ---

func (s *memStore) addLeaderboard(lb models.Leaderboard, prizes ...models.Prize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaderboards[lb.ID] = lb
	s.prizes[lb.ID] = prizes
}

func (s *memStore) addPeriod(p models.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
}

func (s *memStore) addEntries(periodID string, entries ...models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.PeriodID = periodID
		s.entries[periodID] = append(s.entries[periodID], e)
	}
}

func (s *memStore) period(id string) models.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods[id]
}

func (s *memStore) entryByID(periodID, id string) models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries[periodID] {
		if e.ID == id {
			return e
		}
	}
	return models.Entry{}
}

func (s *memStore) winnersOf(periodID string) []models.Winner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Winner(nil), s.winners[periodID]...)
}

func (s *memStore) setScore(periodID, entryID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[periodID]
	for i := range list {
		if list[i].ID == entryID {
			list[i].Score = score
		}
	}
}

// --- leaderboard repository ---

type memLeaderboardRepo struct{ s *memStore }

func (r memLeaderboardRepo) GetByID(ctx context.Context, _ repositories.SQLExecutor, id string) (*models.Leaderboard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id == r.s.brokenLeaderboard {
		return nil, errInjected
	}
	lb, ok := r.s.leaderboards[id]
	if !ok {
		return nil, repositories.ErrLeaderboardNotFound
	}
	return &lb, nil
}

func (r memLeaderboardRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id string) (*models.Leaderboard, error) {
	return r.GetByID(ctx, exec, id)
}

func (r memLeaderboardRepo) ListActive(ctx context.Context, _ repositories.SQLExecutor) ([]*models.Leaderboard, error) {
	if err := r.s.fail("ListActive"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.Leaderboard
	for _, lb := range r.s.leaderboards {
		if lb.IsActive {
			lb := lb
			list = append(list, &lb)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r memLeaderboardRepo) ListPrizes(ctx context.Context, _ repositories.SQLExecutor, leaderboardID string) ([]models.Prize, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]models.Prize(nil), r.s.prizes[leaderboardID]...), nil
}

// --- period repository ---

type memPeriodRepo struct{ s *memStore }

func (r memPeriodRepo) Create(ctx context.Context, _ repositories.SQLExecutor, p *models.Period) error {
	if err := r.s.fail("CreatePeriod"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.periods {
		if existing.LeaderboardID != p.LeaderboardID {
			continue
		}
		if existing.Status == models.PeriodStatusActive && p.Status == models.PeriodStatusActive {
			return repositories.ErrActivePeriodConflict
		}
		if existing.StartDate.Equal(p.StartDate) && existing.EndDate.Equal(p.EndDate) {
			return repositories.ErrPeriodBoundaryConflict
		}
	}
	p.CreatedAt = time.Now().UTC()
	r.s.periods[p.ID] = *p
	return nil
}

func (r memPeriodRepo) GetByID(ctx context.Context, _ repositories.SQLExecutor, id string) (*models.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.periods[id]
	if !ok {
		return nil, repositories.ErrPeriodNotFound
	}
	return &p, nil
}

func (r memPeriodRepo) LockForFinalize(ctx context.Context, _ repositories.SQLExecutor, id string) (*repositories.FinalizeTarget, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.periods[id]
	if !ok {
		return nil, repositories.ErrPeriodNotFound
	}
	lb := r.s.leaderboards[p.LeaderboardID]
	return &repositories.FinalizeTarget{Period: &p, HigherIsBetter: lb.HigherIsBetter}, nil
}

func (r memPeriodRepo) GetActiveByLeaderboard(ctx context.Context, _ repositories.SQLExecutor, leaderboardID string) (*models.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.periods {
		if p.LeaderboardID == leaderboardID && p.Status == models.PeriodStatusActive {
			return &p, nil
		}
	}
	return nil, repositories.ErrPeriodNotFound
}

func (r memPeriodRepo) FindByBoundaries(ctx context.Context, _ repositories.SQLExecutor, leaderboardID string, start, end time.Time) (*models.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.periods {
		if p.LeaderboardID == leaderboardID && p.StartDate.Equal(start) && p.EndDate.Equal(end) {
			return &p, nil
		}
	}
	return nil, repositories.ErrPeriodNotFound
}

func (r memPeriodRepo) ListByLeaderboard(ctx context.Context, _ repositories.SQLExecutor, leaderboardID string, limit int) ([]*models.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.Period
	for _, p := range r.s.periods {
		if p.LeaderboardID == leaderboardID {
			p := p
			list = append(list, &p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartDate.After(list[j].StartDate) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r memPeriodRepo) MarkFinalized(ctx context.Context, _ repositories.SQLExecutor, id string, status models.PeriodStatus, finalizedAt time.Time, finalizedBy string) error {
	if err := r.s.fail("MarkFinalized"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.periods[id]
	if !ok {
		return repositories.ErrPeriodNotFound
	}
	p.Status = status
	p.FinalizedAt = &finalizedAt
	p.FinalizedByID = &finalizedBy
	r.s.periods[id] = p
	return nil
}

// --- entry repository ---

type memEntryRepo struct{ s *memStore }

func (r memEntryRepo) ListByPeriod(ctx context.Context, _ repositories.SQLExecutor, periodID string, forUpdate bool) ([]models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := append([]models.Entry(nil), r.s.entries[periodID]...)
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r memEntryRepo) ListRanked(ctx context.Context, _ repositories.SQLExecutor, periodID string) ([]models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := append([]models.Entry(nil), r.s.entries[periodID]...)
	sort.Slice(list, func(i, j int) bool {
		ri, rj := list[i].Rank, list[j].Rank
		switch {
		case ri != nil && rj != nil && *ri != *rj:
			return *ri < *rj
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r memEntryRepo) UpdateRanks(ctx context.Context, _ repositories.SQLExecutor, periodID string, ranks []ranking.RankAssignment) error {
	if err := r.s.fail("UpdateRanks"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byID := make(map[string]int, len(ranks))
	for _, a := range ranks {
		byID[a.EntryID] = a.Rank
	}
	// Новый слайс, чтобы снимок транзакции не видел изменений.
	updated := make([]models.Entry, len(r.s.entries[periodID]))
	for i, e := range r.s.entries[periodID] {
		if rank, ok := byID[e.ID]; ok {
			rank := rank
			e.Rank = &rank
		}
		updated[i] = e
	}
	r.s.entries[periodID] = updated
	return nil
}

func (r memEntryRepo) UpsertScore(ctx context.Context, _ repositories.SQLExecutor, entry *models.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.periods[entry.PeriodID]
	if !ok || p.Status != models.PeriodStatusActive {
		return repositories.ErrEntryPeriodClosed
	}
	list := r.s.entries[entry.PeriodID]
	for i := range list {
		if list[i].Participant == entry.Participant {
			list[i].Score = entry.Score
			*entry = list[i]
			return nil
		}
	}
	r.s.entries[entry.PeriodID] = append(list, *entry)
	return nil
}

// --- winner repository ---

type memWinnerRepo struct{ s *memStore }

func (r memWinnerRepo) DeleteByPeriod(ctx context.Context, _ repositories.SQLExecutor, periodID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.winners[periodID]))
	delete(r.s.winners, periodID)
	return n, nil
}

func (r memWinnerRepo) BatchCreate(ctx context.Context, _ repositories.SQLExecutor, winners []models.Winner) error {
	if err := r.s.fail("BatchCreate"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range winners {
		for _, existing := range r.s.winners[w.PeriodID] {
			if existing.PrizeID == w.PrizeID {
				return errors.New("duplicate winner for prize " + w.PrizeID)
			}
		}
		r.s.winners[w.PeriodID] = append(r.s.winners[w.PeriodID], w)
	}
	return nil
}

func (r memWinnerRepo) ListByPeriod(ctx context.Context, _ repositories.SQLExecutor, periodID string) ([]models.Winner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := append([]models.Winner(nil), r.s.winners[periodID]...)
	sort.Slice(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	return list, nil
}

// --- wiring ---

var fixedNow = time.Date(2024, time.March, 13, 15, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store       *memStore
	finalizer   FinalizerService
	periods     PeriodService
	leaderboard LeaderboardService
	events      *recordingObserver
}

type recordingObserver struct {
	mu     sync.Mutex
	events []models.PeriodFinalizedEvent
	err    error
}

func (o *recordingObserver) PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return o.err
}

func (o *recordingObserver) received() []models.PeriodFinalizedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.PeriodFinalizedEvent(nil), o.events...)
}

func newTestEnv() *testEnv {
	store := newMemStore()
	lbRepo := memLeaderboardRepo{store}
	periodRepo := memPeriodRepo{store}
	entryRepo := memEntryRepo{store}
	winnerRepo := memWinnerRepo{store}
	observer := &recordingObserver{}
	logger := discardLogger()

	finalizer := NewFinalizerService(store, periodRepo, lbRepo, entryRepo, winnerRepo,
		[]FinalizeObserver{observer}, nil, logger, func() time.Time { return fixedNow })

	return &testEnv{
		store:       store,
		finalizer:   finalizer,
		periods:     NewPeriodService(store, lbRepo, periodRepo, finalizer, nil, logger),
		leaderboard: NewLeaderboardService(lbRepo, periodRepo, entryRepo, winnerRepo),
		events:      observer,
	}
}

func studioBoard(id string, higherIsBetter bool) models.Leaderboard {
	return models.Leaderboard{
		ID:              id,
		Name:            "Top studios",
		ParticipantType: models.ParticipantStudio,
		Timeframe:       models.TimeframeMonthly,
		HigherIsBetter:  higherIsBetter,
		MetricName:      "bookings",
		IsActive:        true,
	}
}

func prize(id, leaderboardID string, position int) models.Prize {
	return models.Prize{ID: id, LeaderboardID: leaderboardID, Position: position, Name: id, PrizeType: "badge"}
}

func activePeriod(id, leaderboardID string, start, end time.Time) models.Period {
	return models.Period{
		ID:            id,
		LeaderboardID: leaderboardID,
		Name:          "test period",
		StartDate:     start,
		EndDate:       end,
		Status:        models.PeriodStatusActive,
	}
}

func entry(id, studioID string, score float64) models.Entry {
	return models.Entry{ID: id, Participant: models.StudioParticipant(studioID), Score: score}
}

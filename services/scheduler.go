package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/studio-leaderboards/metrics"
	"github.com/Dosada05/studio-leaderboards/repositories"
	"golang.org/x/sync/errgroup"
)

const DefaultSchedulerActor = "system:scheduler"

// Scheduler periodically rolls every active leaderboard over to the period
// that contains the current time.
type Scheduler struct {
	leaderboardRepo repositories.LeaderboardRepository
	periodService   PeriodService
	actor           string
	parallelism     int
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

func NewScheduler(
	leaderboardRepo repositories.LeaderboardRepository,
	periodService PeriodService,
	actor string,
	parallelism int,
	m *metrics.Metrics,
	logger *slog.Logger,
	now func() time.Time,
) *Scheduler {
	if actor == "" {
		actor = DefaultSchedulerActor
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		leaderboardRepo: leaderboardRepo,
		periodService:   periodService,
		actor:           actor,
		parallelism:     parallelism,
		metrics:         m,
		logger:          logger,
		now:             now,
	}
}

// RunOnce rolls over all active leaderboards. A failure on one leaderboard
// does not stop the others; all failures are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (err error) {
	defer func() { s.metrics.SchedulerRun(err) }()

	boards, err := s.leaderboardRepo.ListActive(ctx, nil)
	if err != nil {
		return &StorageError{Op: "list active leaderboards", Err: err}
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(s.parallelism)

	for _, lb := range boards {
		lb := lb
		g.Go(func() error {
			res, rerr := s.periodService.Rollover(ctx, lb.ID, s.actor, now)
			if rerr != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("leaderboard %s: %w", lb.ID, rerr))
				mu.Unlock()
				s.logger.Error("scheduler rollover failed",
					slog.String("leaderboard_id", lb.ID),
					slog.Any("error", rerr))
				return nil
			}
			if res.Finalized != nil || res.Created {
				s.logger.Info("scheduler rolled leaderboard",
					slog.String("leaderboard_id", lb.ID),
					slog.String("current_period_id", res.Current.ID),
					slog.Bool("finalized_previous", res.Finalized != nil),
					slog.Bool("created", res.Created))
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Start runs a sweep immediately and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("scheduler disabled")
		return
	}
	s.logger.Info("scheduler started", slog.Duration("interval", interval))

	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if err := s.RunOnce(ctx, s.now()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduler sweep finished with errors", slog.Any("error", err))
	}
}

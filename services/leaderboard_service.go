package services

import (
	"context"
	"errors"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/ranking"
	"github.com/Dosada05/studio-leaderboards/repositories"
	"golang.org/x/sync/errgroup"
)

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, leaderboardID string) (*models.Leaderboard, error)
	// GetStandings returns stored ranks and winners for a finalized period.
	// While the period is ACTIVE the entries are ordered by the comparator
	// and the winners are a provisional projection that is not persisted.
	GetStandings(ctx context.Context, periodID string) (*models.Standings, error)
}

type leaderboardService struct {
	leaderboardRepo repositories.LeaderboardRepository
	periodRepo      repositories.PeriodRepository
	entryRepo       repositories.EntryRepository
	winnerRepo      repositories.WinnerRepository
}

func NewLeaderboardService(
	leaderboardRepo repositories.LeaderboardRepository,
	periodRepo repositories.PeriodRepository,
	entryRepo repositories.EntryRepository,
	winnerRepo repositories.WinnerRepository,
) LeaderboardService {
	return &leaderboardService{
		leaderboardRepo: leaderboardRepo,
		periodRepo:      periodRepo,
		entryRepo:       entryRepo,
		winnerRepo:      winnerRepo,
	}
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, leaderboardID string) (*models.Leaderboard, error) {
	lb, err := s.leaderboardRepo.GetByID(ctx, nil, leaderboardID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeaderboardNotFound) {
			return nil, &NotFoundError{Resource: "leaderboard", ID: leaderboardID}
		}
		return nil, &StorageError{Op: "get leaderboard", Err: err}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		prizes, err := s.leaderboardRepo.ListPrizes(gCtx, nil, leaderboardID)
		if err != nil {
			return err
		}
		lb.Prizes = prizes
		return nil
	})

	g.Go(func() error {
		current, err := s.periodRepo.GetActiveByLeaderboard(gCtx, nil, leaderboardID)
		if err != nil {
			if errors.Is(err, repositories.ErrPeriodNotFound) {
				return nil
			}
			return err
		}
		lb.CurrentPeriod = current
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, &StorageError{Op: "load leaderboard details", Err: err}
	}
	if lb.Prizes == nil {
		lb.Prizes = []models.Prize{}
	}
	return lb, nil
}

func (s *leaderboardService) GetStandings(ctx context.Context, periodID string) (*models.Standings, error) {
	period, err := s.periodRepo.GetByID(ctx, nil, periodID)
	if err != nil {
		if errors.Is(err, repositories.ErrPeriodNotFound) {
			return nil, &NotFoundError{Resource: "period", ID: periodID}
		}
		return nil, &StorageError{Op: "get period", Err: err}
	}

	standings := &models.Standings{Period: period}
	provisional := period.Status == models.PeriodStatusActive

	var (
		lb     *models.Leaderboard
		prizes []models.Prize
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, err := s.entryRepo.ListRanked(gCtx, nil, periodID)
		if err != nil {
			return err
		}
		standings.Entries = entries
		return nil
	})

	if provisional {
		g.Go(func() error {
			var err error
			lb, err = s.leaderboardRepo.GetByID(gCtx, nil, period.LeaderboardID)
			return err
		})
		g.Go(func() error {
			var err error
			prizes, err = s.leaderboardRepo.ListPrizes(gCtx, nil, period.LeaderboardID)
			return err
		})
	} else {
		g.Go(func() error {
			winners, err := s.winnerRepo.ListByPeriod(gCtx, nil, periodID)
			if err != nil {
				return err
			}
			standings.Winners = winners
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &StorageError{Op: "load standings", Err: err}
	}

	if provisional {
		// Ранги в БД ещё не записаны, порядок считаем на лету.
		sorted, _ := ranking.AssignRanks(standings.Entries, lb.HigherIsBetter)
		standings.Entries = sorted
		standings.Winners = ranking.AssignWinners(periodID, sorted, prizes)
		standings.Provisional = true
	}

	if standings.Entries == nil {
		standings.Entries = []models.Entry{}
	}
	if standings.Winners == nil {
		standings.Winners = []models.Winner{}
	}
	return standings, nil
}

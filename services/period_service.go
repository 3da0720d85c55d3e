package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/studio-leaderboards/metrics"
	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/periods"
	"github.com/Dosada05/studio-leaderboards/repositories"
	"github.com/google/uuid"
)

// EnsureResult describes the ACTIVE period after EnsureCurrentPeriod.
type EnsureResult struct {
	Period  *models.Period `json:"period"`
	Created bool           `json:"created"`
	// Stale means an ACTIVE period exists but its boundaries do not match
	// the window that contains now; it has to be finalized first.
	Stale bool `json:"stale"`
}

type RolloverResult struct {
	Finalized *FinalizeResult `json:"finalized,omitempty"`
	Current   *models.Period  `json:"current"`
	Created   bool            `json:"created"`
}

type PeriodService interface {
	EnsureCurrentPeriod(ctx context.Context, leaderboardID string, now time.Time) (*EnsureResult, error)
	// Rollover finalizes a stale ACTIVE period as COMPLETED on behalf of
	// actor and then makes sure the current window has its period.
	Rollover(ctx context.Context, leaderboardID, actor string, now time.Time) (*RolloverResult, error)
	ListPeriods(ctx context.Context, leaderboardID string, limit int) ([]*models.Period, error)
}

type periodService struct {
	uow             repositories.UnitOfWork
	leaderboardRepo repositories.LeaderboardRepository
	periodRepo      repositories.PeriodRepository
	finalizer       FinalizerService
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

func NewPeriodService(
	uow repositories.UnitOfWork,
	leaderboardRepo repositories.LeaderboardRepository,
	periodRepo repositories.PeriodRepository,
	finalizer FinalizerService,
	m *metrics.Metrics,
	logger *slog.Logger,
) PeriodService {
	if logger == nil {
		logger = slog.Default()
	}
	return &periodService{
		uow:             uow,
		leaderboardRepo: leaderboardRepo,
		periodRepo:      periodRepo,
		finalizer:       finalizer,
		metrics:         m,
		logger:          logger,
	}
}

func (s *periodService) EnsureCurrentPeriod(ctx context.Context, leaderboardID string, now time.Time) (*EnsureResult, error) {
	var result *EnsureResult

	err := s.uow.RunInTx(ctx, func(ctx context.Context, tx repositories.SQLExecutor) error {
		// Блокировка доски сериализует параллельные попытки создать период.
		lb, err := s.leaderboardRepo.GetForUpdate(ctx, tx, leaderboardID)
		if err != nil {
			if errors.Is(err, repositories.ErrLeaderboardNotFound) {
				return &NotFoundError{Resource: "leaderboard", ID: leaderboardID}
			}
			return err
		}
		if !lb.IsActive {
			return &InvalidStateError{Reason: ErrLeaderboardInactive, Detail: leaderboardID}
		}

		tpl, err := periods.BuildPeriodTemplate(lb.Timeframe, now)
		if err != nil {
			return &InvalidStateError{Reason: ErrInvalidTimeframe, Detail: string(lb.Timeframe)}
		}

		active, err := s.periodRepo.GetActiveByLeaderboard(ctx, tx, leaderboardID)
		switch {
		case err == nil:
			result = &EnsureResult{Period: active, Stale: !periods.PeriodMatchesTemplate(active, tpl)}
			return nil
		case !errors.Is(err, repositories.ErrPeriodNotFound):
			return err
		}

		// Окно уже закрыто досрочно: заново не открываем.
		existing, err := s.periodRepo.FindByBoundaries(ctx, tx, leaderboardID, tpl.StartDate, tpl.EndDate)
		switch {
		case err == nil:
			result = &EnsureResult{Period: existing}
			return nil
		case !errors.Is(err, repositories.ErrPeriodNotFound):
			return err
		}

		period := &models.Period{
			ID:            uuid.NewString(),
			LeaderboardID: leaderboardID,
			Name:          tpl.Name,
			StartDate:     tpl.StartDate,
			EndDate:       tpl.EndDate,
			Status:        models.PeriodStatusActive,
		}
		if err := s.periodRepo.Create(ctx, tx, period); err != nil {
			return err
		}
		result = &EnsureResult{Period: period, Created: true}
		return nil
	})
	if err != nil {
		return nil, classifyTxError("ensure current period", err)
	}

	if result.Created {
		s.metrics.PeriodOpened()
		s.logger.Info("period opened",
			slog.String("leaderboard_id", leaderboardID),
			slog.String("period_id", result.Period.ID),
			slog.String("name", result.Period.Name))
	}
	return result, nil
}

func (s *periodService) Rollover(ctx context.Context, leaderboardID, actor string, now time.Time) (*RolloverResult, error) {
	ensured, err := s.EnsureCurrentPeriod(ctx, leaderboardID, now)
	if err != nil {
		return nil, err
	}
	if !ensured.Stale {
		return &RolloverResult{Current: ensured.Period, Created: ensured.Created}, nil
	}

	stale := ensured.Period
	finalized, err := s.finalizer.Finalize(ctx, stale.ID, actor, FinalizeOptions{})
	if err != nil {
		// Период мог быть закрыт параллельно администратором.
		if !errors.Is(err, ErrPeriodAlreadyFinalized) {
			return nil, err
		}
		s.logger.Info("stale period already finalized", slog.String("period_id", stale.ID))
	}

	current, err := s.EnsureCurrentPeriod(ctx, leaderboardID, now)
	if err != nil {
		return nil, err
	}
	if current.Stale {
		return nil, &InvalidStateError{Reason: ErrInvalidState, Detail: "stale ACTIVE period survived rollover"}
	}
	return &RolloverResult{Finalized: finalized, Current: current.Period, Created: current.Created}, nil
}

func (s *periodService) ListPeriods(ctx context.Context, leaderboardID string, limit int) ([]*models.Period, error) {
	if _, err := s.leaderboardRepo.GetByID(ctx, nil, leaderboardID); err != nil {
		if errors.Is(err, repositories.ErrLeaderboardNotFound) {
			return nil, &NotFoundError{Resource: "leaderboard", ID: leaderboardID}
		}
		return nil, &StorageError{Op: "get leaderboard", Err: err}
	}
	list, err := s.periodRepo.ListByLeaderboard(ctx, nil, leaderboardID, limit)
	if err != nil {
		return nil, &StorageError{Op: "list periods", Err: err}
	}
	if list == nil {
		return []*models.Period{}, nil
	}
	return list, nil
}

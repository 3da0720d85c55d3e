package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/studio-leaderboards/metrics"
	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/ranking"
	"github.com/Dosada05/studio-leaderboards/repositories"
	"github.com/google/uuid"
)

// FinalizeOptions overrides the default terminal status (COMPLETED).
type FinalizeOptions struct {
	Status *models.PeriodStatus
}

type FinalizeResult struct {
	PeriodID       string              `json:"period_id"`
	Status         models.PeriodStatus `json:"status"`
	FinalizedAt    time.Time           `json:"finalized_at"`
	RankedEntries  int                 `json:"ranked_entries"`
	WinnersCreated int                 `json:"winners_created"`
}

type FinalizerService interface {
	// Finalize ranks every entry of the period, snapshots winners for the
	// configured prizes and closes the period, all in one transaction.
	Finalize(ctx context.Context, periodID, finalizedBy string, opts FinalizeOptions) (*FinalizeResult, error)
}

type finalizerService struct {
	uow             repositories.UnitOfWork
	periodRepo      repositories.PeriodRepository
	leaderboardRepo repositories.LeaderboardRepository
	entryRepo       repositories.EntryRepository
	winnerRepo      repositories.WinnerRepository
	observers       []FinalizeObserver
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

func NewFinalizerService(
	uow repositories.UnitOfWork,
	periodRepo repositories.PeriodRepository,
	leaderboardRepo repositories.LeaderboardRepository,
	entryRepo repositories.EntryRepository,
	winnerRepo repositories.WinnerRepository,
	observers []FinalizeObserver,
	m *metrics.Metrics,
	logger *slog.Logger,
	now func() time.Time,
) FinalizerService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &finalizerService{
		uow:             uow,
		periodRepo:      periodRepo,
		leaderboardRepo: leaderboardRepo,
		entryRepo:       entryRepo,
		winnerRepo:      winnerRepo,
		observers:       observers,
		metrics:         m,
		logger:          logger,
		now:             now,
	}
}

func (s *finalizerService) Finalize(ctx context.Context, periodID, finalizedBy string, opts FinalizeOptions) (*FinalizeResult, error) {
	finalizedBy = strings.TrimSpace(finalizedBy)
	if finalizedBy == "" {
		return nil, ErrFinalizedByRequired
	}
	status := models.PeriodStatusCompleted
	if opts.Status != nil {
		status = *opts.Status
	}
	if !status.IsTerminal() {
		return nil, &InvalidStateError{Reason: ErrInvalidStatus, Detail: string(status)}
	}

	started := time.Now()
	finalizedAt := s.now().UTC()

	var (
		result *FinalizeResult
		event  models.PeriodFinalizedEvent
	)

	err := s.uow.RunInTx(ctx, func(ctx context.Context, tx repositories.SQLExecutor) error {
		target, err := s.periodRepo.LockForFinalize(ctx, tx, periodID)
		if err != nil {
			if errors.Is(err, repositories.ErrPeriodNotFound) {
				return &NotFoundError{Resource: "period", ID: periodID}
			}
			return err
		}
		period := target.Period
		if period.Status.IsTerminal() && opts.Status == nil {
			return &InvalidStateError{Reason: ErrPeriodAlreadyFinalized, Detail: string(period.Status)}
		}

		prizes, err := s.leaderboardRepo.ListPrizes(ctx, tx, period.LeaderboardID)
		if err != nil {
			return err
		}
		entries, err := s.entryRepo.ListByPeriod(ctx, tx, periodID, true)
		if err != nil {
			return err
		}

		sorted, ranks := ranking.AssignRanks(entries, target.HigherIsBetter)
		if err := s.entryRepo.UpdateRanks(ctx, tx, periodID, ranks); err != nil {
			return err
		}

		// Повторная финализация заменяет снимок победителей целиком.
		if _, err := s.winnerRepo.DeleteByPeriod(ctx, tx, periodID); err != nil {
			return err
		}
		winners := ranking.AssignWinners(periodID, sorted, prizes)
		for i := range winners {
			winners[i].ID = uuid.NewString()
			winners[i].CreatedAt = finalizedAt
		}
		if err := s.winnerRepo.BatchCreate(ctx, tx, winners); err != nil {
			return err
		}

		if err := s.periodRepo.MarkFinalized(ctx, tx, periodID, status, finalizedAt, finalizedBy); err != nil {
			return err
		}

		result = &FinalizeResult{
			PeriodID:       periodID,
			Status:         status,
			FinalizedAt:    finalizedAt,
			RankedEntries:  len(sorted),
			WinnersCreated: len(winners),
		}
		event = models.PeriodFinalizedEvent{
			Type:          models.EventPeriodFinalized,
			LeaderboardID: period.LeaderboardID,
			PeriodID:      periodID,
			PeriodName:    period.Name,
			Status:        status,
			FinalizedAt:   finalizedAt,
			FinalizedBy:   finalizedBy,
			RankedEntries: len(sorted),
			Winners:       winners,
			Entries:       sorted,
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveFinalize(time.Since(started), 0, err)
		s.logger.Warn("period finalize failed",
			slog.String("period_id", periodID),
			slog.String("finalized_by", finalizedBy),
			slog.Any("error", err))
		return nil, classifyTxError("finalize period", err)
	}

	s.metrics.ObserveFinalize(time.Since(started), result.WinnersCreated, nil)
	s.logger.Info("period finalized",
		slog.String("period_id", periodID),
		slog.String("leaderboard_id", event.LeaderboardID),
		slog.String("status", string(status)),
		slog.Int("ranked_entries", result.RankedEntries),
		slog.Int("winners_created", result.WinnersCreated))

	notifyObservers(ctx, s.logger, s.observers, event)
	return result, nil
}

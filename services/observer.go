package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
)

const observerTimeout = 10 * time.Second

// FinalizeObserver is notified after a finalization has committed. Errors are
// logged and never undo the commit.
type FinalizeObserver interface {
	PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error
}

// FinalizeObserverFunc adapts a plain function to FinalizeObserver.
type FinalizeObserverFunc func(ctx context.Context, event models.PeriodFinalizedEvent) error

func (f FinalizeObserverFunc) PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error {
	return f(ctx, event)
}

func notifyObservers(ctx context.Context, logger *slog.Logger, observers []FinalizeObserver, event models.PeriodFinalizedEvent) {
	if len(observers) == 0 {
		return
	}
	// Запрос мог уже завершиться, но уведомления должны дойти.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
	defer cancel()

	for _, o := range observers {
		if err := o.PeriodFinalized(ctx, event); err != nil {
			logger.Error("finalize observer failed",
				slog.String("period_id", event.PeriodID),
				slog.String("leaderboard_id", event.LeaderboardID),
				slog.Any("error", err))
		}
	}
}

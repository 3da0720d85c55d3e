package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/studio-leaderboards/models"
)

// SnapshotKey is where the archive of one finalized period is stored.
func SnapshotKey(leaderboardID, periodID string) string {
	return fmt.Sprintf("leaderboards/%s/periods/%s.json", leaderboardID, periodID)
}

// SnapshotArchiver writes the full ranked result of every finalized period
// to the object store. A re-finalization overwrites the same key.
type SnapshotArchiver struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewSnapshotArchiver(store ObjectStore, logger *slog.Logger) *SnapshotArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotArchiver{store: store, logger: logger}
}

func (a *SnapshotArchiver) PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error {
	body, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot for period %s: %w", event.PeriodID, err)
	}

	key := SnapshotKey(event.LeaderboardID, event.PeriodID)
	res, err := a.store.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("archive period %s: %w", event.PeriodID, err)
	}

	a.logger.Info("period snapshot archived",
		slog.String("period_id", event.PeriodID),
		slog.String("key", res.Key),
		slog.String("location", res.Location))
	return nil
}

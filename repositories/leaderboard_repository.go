package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/studio-leaderboards/models"
)

var ErrLeaderboardNotFound = errors.New("leaderboard not found")

type LeaderboardRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Leaderboard, error)
	// GetForUpdate locks the leaderboard row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id string) (*models.Leaderboard, error)
	ListActive(ctx context.Context, exec SQLExecutor) ([]*models.Leaderboard, error)
	ListPrizes(ctx context.Context, exec SQLExecutor, leaderboardID string) ([]models.Prize, error)
}

type postgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) LeaderboardRepository {
	return &postgresLeaderboardRepository{db: db}
}

func (r *postgresLeaderboardRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const leaderboardColumns = `id, name, participant_type, timeframe, higher_is_better, metric_name, metric_unit, is_active, created_at`

func (r *postgresLeaderboardRepository) scanLeaderboard(row rowScanner) (*models.Leaderboard, error) {
	var lb models.Leaderboard
	err := row.Scan(
		&lb.ID, &lb.Name, &lb.ParticipantType, &lb.Timeframe, &lb.HigherIsBetter,
		&lb.MetricName, &lb.MetricUnit, &lb.IsActive, &lb.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeaderboardNotFound
		}
		return nil, err
	}
	return &lb, nil
}

func (r *postgresLeaderboardRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE id = $1`
	lb, err := r.scanLeaderboard(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrLeaderboardNotFound) {
		return nil, fmt.Errorf("failed to get leaderboard %s: %w", id, err)
	}
	return lb, err
}

func (r *postgresLeaderboardRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id string) (*models.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE id = $1 FOR UPDATE`
	lb, err := r.scanLeaderboard(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrLeaderboardNotFound) {
		return nil, fmt.Errorf("failed to lock leaderboard %s: %w", id, err)
	}
	return lb, err
}

func (r *postgresLeaderboardRepository) ListActive(ctx context.Context, exec SQLExecutor) ([]*models.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE is_active = TRUE ORDER BY id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active leaderboards: %w", err)
	}
	defer rows.Close()

	leaderboards := make([]*models.Leaderboard, 0)
	for rows.Next() {
		lb, scanErr := r.scanLeaderboard(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		leaderboards = append(leaderboards, lb)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return leaderboards, nil
}

func (r *postgresLeaderboardRepository) ListPrizes(ctx context.Context, exec SQLExecutor, leaderboardID string) ([]models.Prize, error) {
	query := `
		SELECT id, leaderboard_id, position, name, prize_type, prize_value
		FROM leaderboard_prizes
		WHERE leaderboard_id = $1
		ORDER BY position ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, leaderboardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prizes for leaderboard %s: %w", leaderboardID, err)
	}
	defer rows.Close()

	prizes := make([]models.Prize, 0)
	for rows.Next() {
		var p models.Prize
		if scanErr := rows.Scan(&p.ID, &p.LeaderboardID, &p.Position, &p.Name, &p.PrizeType, &p.PrizeValue); scanErr != nil {
			return nil, fmt.Errorf("failed to scan prize row: %w", scanErr)
		}
		prizes = append(prizes, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during prize rows iteration: %w", err)
	}
	return prizes, nil
}

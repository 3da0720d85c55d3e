package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
)

var (
	ErrPeriodNotFound           = errors.New("leaderboard period not found")
	ErrActivePeriodConflict     = errors.New("leaderboard already has an active period")
	ErrPeriodBoundaryConflict   = errors.New("a period with these boundaries already exists")
	ErrPeriodLeaderboardInvalid = errors.New("period leaderboard conflict or invalid")
)

// FinalizeTarget is a locked period together with the leaderboard
// polarity needed to rank it.
type FinalizeTarget struct {
	Period         *models.Period
	HigherIsBetter bool
}

type PeriodRepository interface {
	Create(ctx context.Context, exec SQLExecutor, period *models.Period) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Period, error)
	// LockForFinalize locks the period row (FOR UPDATE) and returns it with the
	// parent leaderboard's higher_is_better flag.
	LockForFinalize(ctx context.Context, exec SQLExecutor, id string) (*FinalizeTarget, error)
	GetActiveByLeaderboard(ctx context.Context, exec SQLExecutor, leaderboardID string) (*models.Period, error)
	FindByBoundaries(ctx context.Context, exec SQLExecutor, leaderboardID string, start, end time.Time) (*models.Period, error)
	ListByLeaderboard(ctx context.Context, exec SQLExecutor, leaderboardID string, limit int) ([]*models.Period, error)
	MarkFinalized(ctx context.Context, exec SQLExecutor, id string, status models.PeriodStatus, finalizedAt time.Time, finalizedBy string) error
}

type postgresPeriodRepository struct {
	db *sql.DB
}

func NewPostgresPeriodRepository(db *sql.DB) PeriodRepository {
	return &postgresPeriodRepository{db: db}
}

func (r *postgresPeriodRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const periodColumns = `p.id, p.leaderboard_id, p.name, p.start_date, p.end_date, p.status, p.finalized_at, p.finalized_by_id, p.created_at`

func scanPeriod(row rowScanner, extra ...interface{}) (*models.Period, error) {
	var (
		p           models.Period
		finalizedAt sql.NullTime
		finalizedBy sql.NullString
	)
	dest := []interface{}{
		&p.ID, &p.LeaderboardID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&finalizedAt, &finalizedBy, &p.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	if finalizedAt.Valid {
		t := finalizedAt.Time.UTC()
		p.FinalizedAt = &t
	}
	if finalizedBy.Valid {
		p.FinalizedByID = &finalizedBy.String
	}
	return &p, nil
}

func (r *postgresPeriodRepository) Create(ctx context.Context, exec SQLExecutor, period *models.Period) error {
	query := `
		INSERT INTO leaderboard_periods (id, leaderboard_id, name, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		period.ID, period.LeaderboardID, period.Name, period.StartDate, period.EndDate, period.Status,
	).Scan(&period.CreatedAt)
	return r.handlePeriodError(err)
}

func (r *postgresPeriodRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM leaderboard_periods p WHERE p.id = $1`
	period, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrPeriodNotFound) {
		return nil, fmt.Errorf("failed to scan period by id %s: %w", id, err)
	}
	return period, err
}

func (r *postgresPeriodRepository) LockForFinalize(ctx context.Context, exec SQLExecutor, id string) (*FinalizeTarget, error) {
	query := `
		SELECT ` + periodColumns + `, l.higher_is_better
		FROM leaderboard_periods p
		JOIN leaderboards l ON l.id = p.leaderboard_id
		WHERE p.id = $1
		FOR UPDATE OF p`
	var higherIsBetter bool
	period, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, id), &higherIsBetter)
	if err != nil {
		if errors.Is(err, ErrPeriodNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock period %s: %w", id, err)
	}
	return &FinalizeTarget{Period: period, HigherIsBetter: higherIsBetter}, nil
}

func (r *postgresPeriodRepository) GetActiveByLeaderboard(ctx context.Context, exec SQLExecutor, leaderboardID string) (*models.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM leaderboard_periods p
		WHERE p.leaderboard_id = $1 AND p.status = $2
		ORDER BY p.start_date DESC
		LIMIT 1`
	period, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, leaderboardID, models.PeriodStatusActive))
	if err != nil && !errors.Is(err, ErrPeriodNotFound) {
		return nil, fmt.Errorf("failed to get active period for leaderboard %s: %w", leaderboardID, err)
	}
	return period, err
}

func (r *postgresPeriodRepository) FindByBoundaries(ctx context.Context, exec SQLExecutor, leaderboardID string, start, end time.Time) (*models.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM leaderboard_periods p
		WHERE p.leaderboard_id = $1 AND p.start_date = $2 AND p.end_date = $3`
	period, err := scanPeriod(r.getExecutor(exec).QueryRowContext(ctx, query, leaderboardID, start, end))
	if err != nil && !errors.Is(err, ErrPeriodNotFound) {
		return nil, fmt.Errorf("failed to find period for leaderboard %s: %w", leaderboardID, err)
	}
	return period, err
}

func (r *postgresPeriodRepository) ListByLeaderboard(ctx context.Context, exec SQLExecutor, leaderboardID string, limit int) ([]*models.Period, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + periodColumns + `
		FROM leaderboard_periods p
		WHERE p.leaderboard_id = $1
		ORDER BY p.start_date DESC
		LIMIT $2`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, leaderboardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods for leaderboard %s: %w", leaderboardID, err)
	}
	defer rows.Close()

	periods := make([]*models.Period, 0)
	for rows.Next() {
		p, scanErr := scanPeriod(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", scanErr)
		}
		periods = append(periods, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during period rows iteration: %w", err)
	}
	return periods, nil
}

func (r *postgresPeriodRepository) MarkFinalized(ctx context.Context, exec SQLExecutor, id string, status models.PeriodStatus, finalizedAt time.Time, finalizedBy string) error {
	query := `
		UPDATE leaderboard_periods
		SET status = $1, finalized_at = $2, finalized_by_id = $3
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, finalizedAt, finalizedBy, id)
	if err != nil {
		return fmt.Errorf("MarkFinalized: failed to execute query for period %s: %w", id, r.handlePeriodError(err))
	}
	return checkAffectedRows(result, ErrPeriodNotFound)
}

func (r *postgresPeriodRepository) handlePeriodError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueViolation(err, "leaderboard_periods_one_active_idx"):
		return ErrActivePeriodConflict
	case isUniqueViolation(err, "leaderboard_periods_boundaries_key"):
		return ErrPeriodBoundaryConflict
	case isForeignKeyViolation(err, "leaderboard_periods_leaderboard_id_fkey"):
		return ErrPeriodLeaderboardInvalid
	}
	return err
}

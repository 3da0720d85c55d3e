package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/Dosada05/studio-leaderboards/ranking"
	"github.com/lib/pq"
)

var (
	ErrEntryNotFound      = errors.New("leaderboard entry not found")
	ErrEntryPeriodClosed  = errors.New("leaderboard period is not accepting scores")
	ErrEntryRanksMismatch = errors.New("rank update did not touch every entry")
)

type EntryRepository interface {
	// ListByPeriod returns all entries of the period ordered by id. With
	// forUpdate the rows stay locked until the transaction ends.
	ListByPeriod(ctx context.Context, exec SQLExecutor, periodID string, forUpdate bool) ([]models.Entry, error)
	// ListRanked returns entries by stored rank, unranked rows last.
	ListRanked(ctx context.Context, exec SQLExecutor, periodID string) ([]models.Entry, error)
	UpdateRanks(ctx context.Context, exec SQLExecutor, periodID string, ranks []ranking.RankAssignment) error
	UpsertScore(ctx context.Context, exec SQLExecutor, entry *models.Entry) error
}

type postgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) EntryRepository {
	return &postgresEntryRepository{db: db}
}

func (r *postgresEntryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const entryColumns = `id, period_id, studio_id, teacher_id, score, rank, previous_rank, updated_at`

func (r *postgresEntryRepository) scanEntry(row rowScanner) (models.Entry, error) {
	var (
		e                   models.Entry
		studioID, teacherID sql.NullString
		rank, previousRank  sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.PeriodID, &studioID, &teacherID, &e.Score, &rank, &previousRank, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, ErrEntryNotFound
		}
		return e, err
	}
	participant, err := participantFromColumns(studioID, teacherID)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Participant = participant
	e.Rank = nullableIntPtr(rank)
	e.PreviousRank = nullableIntPtr(previousRank)
	return e, nil
}

func (r *postgresEntryRepository) list(ctx context.Context, exec SQLExecutor, query string, periodID string) ([]models.Entry, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for period %s: %w", periodID, err)
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		e, scanErr := r.scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entry rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresEntryRepository) ListByPeriod(ctx context.Context, exec SQLExecutor, periodID string, forUpdate bool) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM leaderboard_entries WHERE period_id = $1 ORDER BY id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.list(ctx, exec, query, periodID)
}

func (r *postgresEntryRepository) ListRanked(ctx context.Context, exec SQLExecutor, periodID string) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM leaderboard_entries WHERE period_id = $1 ORDER BY rank ASC NULLS LAST, id ASC`
	return r.list(ctx, exec, query, periodID)
}

// UpdateRanks writes every rank in a single statement.
func (r *postgresEntryRepository) UpdateRanks(ctx context.Context, exec SQLExecutor, periodID string, ranks []ranking.RankAssignment) error {
	if len(ranks) == 0 {
		return nil
	}
	ids := make([]string, len(ranks))
	values := make([]int64, len(ranks))
	for i, ra := range ranks {
		ids[i] = ra.EntryID
		values[i] = int64(ra.Rank)
	}

	query := `
		UPDATE leaderboard_entries AS e
		SET rank = r.rank, updated_at = NOW()
		FROM unnest($1::text[], $2::int[]) AS r(id, rank)
		WHERE e.id = r.id AND e.period_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(ids), pq.Array(values), periodID)
	if err != nil {
		return fmt.Errorf("UpdateRanks: failed to execute query for period %s: %w", periodID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected != int64(len(ranks)) {
		return fmt.Errorf("%w: expected %d rows, updated %d", ErrEntryRanksMismatch, len(ranks), affected)
	}
	return nil
}

// UpsertScore inserts or updates the participant's score, but only while the
// period is ACTIVE. previous_rank is kept when the incoming value is nil.
func (r *postgresEntryRepository) UpsertScore(ctx context.Context, exec SQLExecutor, entry *models.Entry) error {
	studioID, teacherID, err := participantColumns(entry.Participant)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO leaderboard_entries (id, period_id, studio_id, teacher_id, score, previous_rank, updated_at)
		SELECT $1, p.id, $3, $4, $5, $6, NOW()
		FROM leaderboard_periods p
		WHERE p.id = $2 AND p.status = $7
		ON CONFLICT (period_id, participant_key) DO UPDATE SET
			score = EXCLUDED.score,
			previous_rank = COALESCE(EXCLUDED.previous_rank, leaderboard_entries.previous_rank),
			updated_at = EXCLUDED.updated_at
		RETURNING id, updated_at`
	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		entry.ID, entry.PeriodID, studioID, teacherID, entry.Score, entry.PreviousRank, models.PeriodStatusActive,
	).Scan(&entry.ID, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntryPeriodClosed
		}
		return fmt.Errorf("failed to upsert entry for %s in period %s: %w", entry.Participant, entry.PeriodID, err)
	}
	return nil
}

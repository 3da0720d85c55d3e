package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/studio-leaderboards/models"
)

var (
	ErrWinnerPrizeInvalid  = errors.New("winner prize conflict or invalid")
	ErrWinnerPeriodInvalid = errors.New("winner period conflict or invalid")
)

type WinnerRepository interface {
	DeleteByPeriod(ctx context.Context, exec SQLExecutor, periodID string) (int64, error)
	BatchCreate(ctx context.Context, exec SQLExecutor, winners []models.Winner) error
	ListByPeriod(ctx context.Context, exec SQLExecutor, periodID string) ([]models.Winner, error)
}

type postgresWinnerRepository struct {
	db *sql.DB
}

func NewPostgresWinnerRepository(db *sql.DB) WinnerRepository {
	return &postgresWinnerRepository{db: db}
}

func (r *postgresWinnerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresWinnerRepository) DeleteByPeriod(ctx context.Context, exec SQLExecutor, periodID string) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM leaderboard_winners WHERE period_id = $1`, periodID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete winners for period %s: %w", periodID, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return deleted, nil
}

// BatchCreate expects to run inside a unit of work; it does not open its own transaction.
func (r *postgresWinnerRepository) BatchCreate(ctx context.Context, exec SQLExecutor, winners []models.Winner) error {
	if len(winners) == 0 {
		return nil
	}

	stmt, err := r.getExecutor(exec).PrepareContext(ctx, `
		INSERT INTO leaderboard_winners
			(id, period_id, prize_id, studio_id, teacher_id, position, final_score, prize_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("BatchCreate failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, w := range winners {
		studioID, teacherID, colErr := participantColumns(w.Participant)
		if colErr != nil {
			return fmt.Errorf("BatchCreate: winner for prize %s: %w", w.PrizeID, colErr)
		}
		if _, err = stmt.ExecContext(ctx,
			w.ID, w.PeriodID, w.PrizeID, studioID, teacherID, w.Position, w.FinalScore, w.PrizeStatus, w.CreatedAt,
		); err != nil {
			return fmt.Errorf("BatchCreate failed for prize %s: %w", w.PrizeID, r.handleWinnerError(err))
		}
	}
	return nil
}

func (r *postgresWinnerRepository) ListByPeriod(ctx context.Context, exec SQLExecutor, periodID string) ([]models.Winner, error) {
	query := `
		SELECT w.id, w.period_id, w.prize_id, w.studio_id, w.teacher_id, w.position, w.final_score,
		       w.prize_status, w.created_at, p.name, p.prize_type, p.prize_value
		FROM leaderboard_winners w
		JOIN leaderboard_prizes p ON p.id = w.prize_id
		WHERE w.period_id = $1
		ORDER BY w.position ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query winners for period %s: %w", periodID, err)
	}
	defer rows.Close()

	winners := make([]models.Winner, 0)
	for rows.Next() {
		var (
			w                   models.Winner
			prize               models.Prize
			studioID, teacherID sql.NullString
		)
		if scanErr := rows.Scan(
			&w.ID, &w.PeriodID, &w.PrizeID, &studioID, &teacherID, &w.Position, &w.FinalScore,
			&w.PrizeStatus, &w.CreatedAt, &prize.Name, &prize.PrizeType, &prize.PrizeValue,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan winner row: %w", scanErr)
		}
		participant, pErr := participantFromColumns(studioID, teacherID)
		if pErr != nil {
			return nil, fmt.Errorf("winner %s: %w", w.ID, pErr)
		}
		w.Participant = participant
		prize.ID = w.PrizeID
		prize.Position = w.Position
		w.Prize = &prize
		winners = append(winners, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during winner rows iteration: %w", err)
	}
	return winners, nil
}

func (r *postgresWinnerRepository) handleWinnerError(err error) error {
	switch {
	case isForeignKeyViolation(err, "leaderboard_winners_prize_id_fkey"):
		return ErrWinnerPrizeInvalid
	case isForeignKeyViolation(err, "leaderboard_winners_period_id_fkey"):
		return ErrWinnerPeriodInvalid
	}
	return err
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/lib/pq"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx, so every repository
// method can run either on the pool or inside a unit of work.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var ErrInvalidParticipantColumns = errors.New("row must reference exactly one of studio_id or teacher_id")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError // Возвращаем переданную ошибку "не найдено"
	}
	return nil
}

// participantColumns splits the tagged participant into the two nullable
// foreign-key columns used by entries and winners.
func participantColumns(p models.Participant) (studioID, teacherID sql.NullString, err error) {
	if err = p.Validate(); err != nil {
		return studioID, teacherID, err
	}
	switch p.Type {
	case models.ParticipantStudio:
		studioID = sql.NullString{String: p.ID, Valid: true}
	case models.ParticipantTeacher:
		teacherID = sql.NullString{String: p.ID, Valid: true}
	}
	return studioID, teacherID, nil
}

func participantFromColumns(studioID, teacherID sql.NullString) (models.Participant, error) {
	switch {
	case studioID.Valid && !teacherID.Valid:
		return models.StudioParticipant(studioID.String), nil
	case teacherID.Valid && !studioID.Valid:
		return models.TeacherParticipant(teacherID.String), nil
	}
	return models.Participant{}, ErrInvalidParticipantColumns
}

func nullableIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

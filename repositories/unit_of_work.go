package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNilTxFunc = errors.New("unit of work requires a function")

// TxFunc is executed inside a single database transaction. Any error returned
// from it rolls the whole transaction back.
type TxFunc func(ctx context.Context, exec SQLExecutor) error

// UnitOfWork opens a transaction, runs fn inside it and commits or rolls back
// atomically.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn TxFunc) error
}

type sqlUnitOfWork struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLUnitOfWork uses REPEATABLE READ by default; a concurrent write to a
// row locked by the transaction then surfaces as a retryable serialization
// error instead of silently mixing snapshots.
func NewSQLUnitOfWork(db *sql.DB, opts *sql.TxOptions) UnitOfWork {
	if opts == nil {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}
	return &sqlUnitOfWork{db: db, opts: opts}
}

func (u *sqlUnitOfWork) RunInTx(ctx context.Context, fn TxFunc) (txErr error) {
	if fn == nil {
		return ErrNilTxFunc
	}

	tx, err := u.db.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}

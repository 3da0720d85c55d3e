package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Недопустимое состояние или переход статуса
	ErrInvalidState = errors.New("invalid state for requested operation")

	ErrValidationFailed       = errors.New("validation failed")
	ErrFinalizedByRequired    = errors.New("finalizedBy actor is required")
	ErrInvalidStatus          = errors.New("status is not a terminal period status")
	ErrPeriodAlreadyFinalized = errors.New("period is already finalized; pass an explicit status to re-finalize")
	ErrLeaderboardInactive    = errors.New("leaderboard is not active")
	ErrInvalidTimeframe       = errors.New("leaderboard has an unsupported timeframe")
)

// NotFoundError reports an unknown leaderboard or period.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidStateError reports a request that the current state does not allow.
type InvalidStateError struct {
	Reason error
	Detail string
}

func (e *InvalidStateError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func (e *InvalidStateError) Unwrap() error {
	return e.Reason
}

// StorageError wraps a transaction or commit failure. The transaction was
// rolled back, so the operation is safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// classifyTxError keeps domain errors as they are and wraps everything else
// in a StorageError.
func classifyTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *NotFoundError
	var invalid *InvalidStateError
	if errors.As(err, &notFound) || errors.As(err, &invalid) || errors.Is(err, ErrValidationFailed) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

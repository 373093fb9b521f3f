package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
)

// Postgres SQLSTATEs that signal contention rather than failure.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateUniqueViolation      = "23505"
)

// Classify maps database errors onto the engine's taxonomy: contention
// becomes ErrConflict (retried by callers), missing rows become ErrNotFound,
// everything else passes through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateUniqueViolation:
			return apperrors.ErrConflict
		}
	}
	return err
}

package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE of unique_violation
const pgUniqueViolation = "23505"

// UniqueViolation describes a failed insert or update against a unique
// constraint. Constraint is empty when the driver does not report it.
type UniqueViolation struct {
	Constraint string
	Err        error
}

// Error implements the error interface
func (e *UniqueViolation) Error() string {
	if e.Constraint == "" {
		return "unique constraint violated: " + e.Err.Error()
	}
	return "unique constraint " + e.Constraint + " violated: " + e.Err.Error()
}

// Unwrap returns the driver error
func (e *UniqueViolation) Unwrap() error {
	return e.Err
}

// AsUniqueViolation classifies err by its structured driver fields. Postgres
// errors carry the constraint name; drivers translated by GORM
// (gorm.ErrDuplicatedKey) do not.
func AsUniqueViolation(err error) (*UniqueViolation, bool) {
	if err == nil {
		return nil, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolation{Constraint: pgErr.ConstraintName, Err: err}, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &UniqueViolation{Err: err}, true
	}
	return nil, false
}

// IsExpectedError reports errors repositories translate themselves; the GORM
// logger keeps them out of the error log
func IsExpectedError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	_, ok := AsUniqueViolation(err)
	return ok
}

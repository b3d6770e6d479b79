package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrTransient marks an error as safe to retry. Wrap it with fmt.Errorf("...: %w").
var ErrTransient = errors.New("transient database error")

// SQLSTATE codes treated as transient.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
	CodeUniqueViolation      = "23505"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if SQLState(err) == CodeUniqueViolation {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsTransientErr reports whether a persistence error is worth retrying:
// serialization failures, deadlocks, lock timeouts, lost connections and deadlines.
func IsTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	code := SQLState(err)
	switch {
	case code == CodeSerializationFailure, code == CodeDeadlockDetected, code == CodeLockNotAvailable:
		return true
	case strings.HasPrefix(code, "08"):
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

// SQLState extracts the SQLSTATE code from pgx or lib/pq errors.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

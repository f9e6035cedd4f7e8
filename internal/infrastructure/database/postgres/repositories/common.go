// Package repositories provides the PostgreSQL-backed implementations of the
// domain repository interfaces: medications, reminder slots, dose logs and
// user profiles.  Every query is parameterised and scoped by the owning user
// where the interface demands it.
package repositories

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to one named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

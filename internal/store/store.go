// Package store persists the two aggregates of the directory, users and cards.
// Each aggregate owns its side of the favorite relation (user_favorites and
// card_likes) and every write touches exactly one aggregate. Nothing here
// spans both aggregates in one transaction; keeping the two sides in step is
// the job of the directory package.
package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when signing up with an email that is already registered.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrBizNumberTaken is returned when the unique index on cards.biz_number
	// rejects an insert.
	ErrBizNumberTaken = errors.New("business number is already taken")
)

// Edge is one (user, card) pair as recorded on one side of the favorite relation.
type Edge struct {
	UserID string `db:"user_id"`
	CardID string `db:"card_id"`
}

// isUniqueConstraintError checks whether err indicates a unique constraint violation.
// Works across SQLite, PostgreSQL, and MySQL.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // SQLite & PostgreSQL
		strings.Contains(msg, "duplicate key") || // PostgreSQL
		strings.Contains(msg, "duplicate entry") // MySQL
}

// violates reports whether err is a unique violation on an index covering column.
func violates(err error, column string) bool {
	return isUniqueConstraintError(err) && strings.Contains(strings.ToLower(err.Error()), column)
}

package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// isConstraintViolation reports a primary key or unique index clash
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation.
// Postgres errors are matched by SQLSTATE (and constraint name when given);
// other drivers, sqlite in particular, are matched on the message text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if state := pkgerrors.SQLState(err); state != "" {
		if state != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || pkgerrors.Constraint(err) == constraintName
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

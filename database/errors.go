package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/orchestrator/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"driver: bad connection",
	"database is locked",
}

// IsConnectionError reports whether err looks transient.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// FromDatabase converts a database error into an AppError.
func FromDatabase(err error, resource string) *apperrors.AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, "")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case IsConnectionError(err):
		return apperrors.ServiceUnavailable("database").WithCause(err)
	default:
		return apperrors.DatabaseError(err)
	}
}

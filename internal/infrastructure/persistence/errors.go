package persistence

import (
	"errors"
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

// isUniqueViolation recognises a duplicate key from the translated gorm error,
// a lib/pq error, or a raw sqlite message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE "+uniqueViolation) || strings.Contains(msg, "UNIQUE constraint failed")
}

// notFound maps gorm.ErrRecordNotFound to a NotFound domain error for resource
func notFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(resource)
	}
	return err
}

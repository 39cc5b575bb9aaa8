package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies a DomainError so callers can branch on the failure
// category without matching individual codes.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_failed"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidState        ErrorKind = "invalid_state"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindConflict            ErrorKind = "conflict"
	KindForbidden           ErrorKind = "forbidden"
	KindInternal            ErrorKind = "internal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches sentinel errors by code, so a wrapped or re-created error with the
// same code satisfies errors.Is(err, ErrNotFound).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error. The kind is derived from the code.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    kindForCode(code),
		Code:    code,
		Message: message,
	}
}

// NewKindError creates a domain error with an explicit kind.
func NewKindError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a ValidationFailed error.
func NewValidationError(code, message string) *DomainError {
	return NewKindError(KindValidation, code, message)
}

// NewInvalidStateError creates an InvalidState error.
func NewInvalidStateError(code, message string) *DomainError {
	return NewKindError(KindInvalidState, code, message)
}

// NewNotFoundError creates a NotFound error for the named resource.
func NewNotFoundError(resource string) *DomainError {
	return NewKindError(KindNotFound, ErrNotFound.Code, fmt.Sprintf("%s not found", resource))
}

// NewInsufficientBalanceError reports a debit larger than the available balance.
func NewInsufficientBalanceError(available, requested decimal.Decimal) *DomainError {
	return NewKindError(KindInsufficientBalance, ErrInsufficientBalance.Code,
		fmt.Sprintf("Insufficient balance: available %s, requested %s", available.StringFixed(2), requested.StringFixed(2)))
}

// NewConflictError creates a Conflict error.
func NewConflictError(code, message string) *DomainError {
	return NewKindError(KindConflict, code, message)
}

// KindOf returns the kind of the first DomainError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func kindForCode(code string) ErrorKind {
	switch code {
	case "NOT_FOUND":
		return KindNotFound
	case "INVALID_STATE":
		return KindInvalidState
	case "INSUFFICIENT_BALANCE":
		return KindInsufficientBalance
	case "ALREADY_EXISTS", "CONCURRENCY_CONFLICT", "DUPLICATE_REQUEST":
		return KindConflict
	case "UNAUTHORIZED", "FORBIDDEN":
		return KindForbidden
	case "INTERNAL":
		return KindInternal
	default:
		return KindValidation
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrValidation          = ErrInvalidInput
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrConflict            = ErrConcurrencyConflict
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientBalance = NewDomainError("INSUFFICIENT_BALANCE", "Insufficient balance available")
)

package dto

import (
	"errors"
	"net/http"

	"github.com/fieldops/backend/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep the code they were raised with.
const (
	ErrCodeInternal            = "INTERNAL"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeDuplicateRequest    = "DUPLICATE_REQUEST"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeRequestTooLarge     = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes that have a fixed status of their own.
// Anything else is resolved through the error kind.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidJSON:         http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
}

// ErrorKindHTTPStatus maps each domain error kind to its status
var ErrorKindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:          http.StatusBadRequest,
	shared.KindNotFound:            http.StatusNotFound,
	shared.KindConflict:            http.StatusConflict,
	shared.KindInvalidState:        http.StatusUnprocessableEntity,
	shared.KindInsufficientBalance: http.StatusUnprocessableEntity,
	shared.KindForbidden:           http.StatusForbidden,
	shared.KindInternal:            http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for a code, 500 when the code is unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForKind returns the status for a domain error kind
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := ErrorKindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorInfoFor resolves an error into a status and its envelope fields.
// Errors that are not domain errors never leak their message.
func ErrorInfoFor(err error) (int, string, string) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred"
	}
	if de.Code == shared.ErrUnauthorized.Code {
		return http.StatusUnauthorized, de.Code, de.Message
	}
	return StatusForKind(de.Kind), de.Code, de.Message
}

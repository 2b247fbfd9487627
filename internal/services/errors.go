// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrorCode classifies business-rule rejections. Every rejected mutation
// carries a code and a human-readable reason; infrastructure failures
// are returned as plain errors and treated as unrecoverable.
type ErrorCode string

const (
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	CodeExpired            ErrorCode = "EXPIRED"
	CodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"
)

type AppError struct {
	Code    ErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrUnauthorized(format string, args ...interface{}) *AppError {
	return NewAppError(CodeUnauthorized, format, args...)
}

func ErrNotFound(format string, args ...interface{}) *AppError {
	return NewAppError(CodeNotFound, format, args...)
}

func ErrConflict(format string, args ...interface{}) *AppError {
	return NewAppError(CodeConflict, format, args...)
}

func ErrInvalidTransition(format string, args ...interface{}) *AppError {
	return NewAppError(CodeInvalidTransition, format, args...)
}

func ErrValidationFailed(format string, args ...interface{}) *AppError {
	return NewAppError(CodeValidationFailed, format, args...)
}

func ErrExpired(format string, args ...interface{}) *AppError {
	return NewAppError(CodeExpired, format, args...)
}

// CodeOf extracts the error code, or empty for infrastructure errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// isUniqueViolation recognizes duplicate-key failures from postgres and
// from the sqlite test driver, so races on unique indexes surface as
// Conflict instead of an internal error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key")
}

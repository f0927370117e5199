// Package apperr defines the error taxonomy shared by the domain services and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// AppError is an error with an HTTP status, a stable machine-readable code
// and optional per-field details.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound is used both for missing rows and for rows owned by another
// patient, so the two cases are indistinguishable to the caller.
func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
	}
}

// Validation reports field rule violations.
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// Invalid is Validation for a single field.
func Invalid(field, reason string) *AppError {
	return Validation(fmt.Sprintf("%s: %s", field, reason), map[string]string{field: reason})
}

// Duplicate reports an attempt to create an association that already exists.
func Duplicate(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusBadRequest,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// From classifies an arbitrary error. Sentinel errors raised by repositories
// become their AppError counterparts; anything unknown is Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFound("resource")
	case errors.Is(err, ErrConflict):
		return Duplicate("resource already exists")
	case errors.Is(err, ErrValidation):
		return Validation(err.Error(), nil)
	case errors.Is(err, ErrBadRequest):
		return BadRequest(err.Error())
	}
	return Internal(err)
}

// Fields accumulates field-level validation failures.
type Fields map[string]string

// Add records reason for field; the first reason per field wins.
func (f Fields) Add(field, reason string) {
	if _, ok := f[field]; !ok {
		f[field] = reason
	}
}

// MaxLen records field when v holds more than n characters. A nil v passes.
func (f Fields) MaxLen(field string, v *string, n int) {
	if v != nil && utf8.RuneCountInString(*v) > n {
		f.Add(field, fmt.Sprintf("must be at most %d characters", n))
	}
}

// Err returns nil when no failures were recorded.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, f[k]))
	}
	return Validation(strings.Join(parts, "; "), f)
}

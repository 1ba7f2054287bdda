package types

import (
	"fmt"
	"net/http"
)

// Error kinds, carried in CustomError.Type
const (
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindForbidden  = "forbidden"
	KindValidation = "validation"
	KindInternal   = "internal"
)

type CustomError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Type    string   `json:"type"`
	Field   string   `json:"field,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Is matches any CustomError of the same kind, so errors.Is(err, &CustomError{Type: KindConflict}) works.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NotFound reports missing references, with the offending ids.
func NotFound(message string, ids ...string) *CustomError {
	return &CustomError{Code: http.StatusNotFound, Message: message, Type: KindNotFound, IDs: ids}
}

// Conflict reports duplicate names and cross-source tag collisions.
func Conflict(field, message string, ids ...string) *CustomError {
	return &CustomError{Code: http.StatusConflict, Message: message, Type: KindConflict, Field: field, IDs: ids}
}

func Forbidden(message string) *CustomError {
	return &CustomError{Code: http.StatusForbidden, Message: message, Type: KindForbidden}
}

func Validation(field, message string) *CustomError {
	return &CustomError{Code: http.StatusBadRequest, Message: message, Type: KindValidation, Field: field}
}

// Internal hides the cause from the caller; log it before returning this.
func Internal(message string) *CustomError {
	return &CustomError{Code: http.StatusInternalServerError, Message: message, Type: KindInternal}
}

var (
	ErrNotFound   = &CustomError{Type: KindNotFound}
	ErrConflict   = &CustomError{Type: KindConflict}
	ErrForbidden  = &CustomError{Type: KindForbidden}
	ErrValidation = &CustomError{Type: KindValidation}
)

package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAssessmentNotOpen  = errors.New("assessment is not open for attempts")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrAttemptNotActive   = errors.New("attempt is no longer active")
	ErrResultNotReady     = errors.New("attempt has not been graded yet")
	ErrNotAttemptOwner    = errors.New("attempt belongs to another student")
	ErrNotAssessmentOwner = errors.New("assessment belongs to another instructor")
)

// ValidationError reports the specific invalid field(s) of an authoring
// input. Recovered locally; no state transition happens.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError marks a duplicate-start or duplicate-submit that cannot be
// absorbed idempotently.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Reason)
}

func NewConflictError(resource, reason string) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason}
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

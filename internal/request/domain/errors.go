package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput      = errors.New("invalid_input")
	ErrPersistenceFailed = errors.New("persistence_failed")
	ErrWriteFailure      = errors.New("write_failure")
)

// Reason enumerates why a submission was rejected.
type Reason string

const ReasonMissingRequired Reason = "missing_required"

// ValidationError reports a rejected submission. It matches ErrInvalidInput
// under errors.Is.
type ValidationError struct {
	Reason Reason
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

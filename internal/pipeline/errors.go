package pipeline

import (
	"errors"
	"fmt"

	"pricer/internal/pricing"
)

// DecodeError means the input could not be parsed as a spreadsheet at all.
// Fatal for the run; surfaced to the user.
type DecodeError struct {
	Err error
}

func (e DecodeError) Error() string {
	return fmt.Errorf("decode: %w", e.Err).Error()
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError covers recoverable input problems: a missing required
// mapping, an out-of-range tolerance, a submission while one is in flight.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return "validation: " + e.Msg
}

// ServiceError means the pricing service failed. Timeout is kept
// distinguishable so the user sees a timeout message instead of a generic
// failure.
type ServiceError struct {
	Timeout bool
	Err     error
}

func (e ServiceError) Error() string {
	if e.Timeout {
		return fmt.Errorf("pricing service timed out: %w", e.Err).Error()
	}
	return fmt.Errorf("pricing service failed: %w", e.Err).Error()
}

func (e ServiceError) Unwrap() error {
	return e.Err
}

// ExportError means the original file was unreadable at export time. The
// exporter falls back to a synthetic table rather than aborting.
type ExportError struct {
	Err error
}

func (e ExportError) Error() string {
	return fmt.Errorf("export: %w", e.Err).Error()
}

func (e ExportError) Unwrap() error {
	return e.Err
}

func serviceError(err error) ServiceError {
	var timeout pricing.ErrTimeout
	return ServiceError{Timeout: errors.As(err, &timeout), Err: err}
}

package pricing

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates the pricing service did not answer in time.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("pricing service timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrUpstream indicates the pricing service answered with a failure.
type ErrUpstream struct {
	Status int
	Err    error
}

func (e ErrUpstream) Error() string {
	return fmt.Errorf("pricing service error (status %d): %w", e.Status, e.Err).Error()
}

func (e ErrUpstream) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var upstream ErrUpstream
	if errors.As(err, &upstream) {
		return "upstream"
	}
	return "other"
}

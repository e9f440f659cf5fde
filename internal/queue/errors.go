package queue

import (
	"errors"

	"github.com/hostelcart/batch-engine/internal/domain"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that must not be redelivered; the consumer
// routes the message to the dead-letter queue instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether a handler error should dead-letter the message.
// Validation failures are never retriable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var p *permanentError
	if errors.As(err, &p) {
		return true
	}

	return errors.Is(err, domain.ErrValidation)
}

package domain

import "errors"

var (
	// ErrValidation marks malformed or rejected input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing batch, order, or related entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a transition attempted from a state that does not
	// satisfy its precondition.
	ErrConflict = errors.New("state conflict")
)

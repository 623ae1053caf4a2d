package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when a status is not valid
	ErrInvalidState = errors.New("invalid status")
)

// InvalidTransitionError carries the rejected transition and what would have been legal
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = s.String()
	}
	list := strings.Join(allowed, ", ")
	if list == "" {
		list = "none"
	}
	return fmt.Sprintf("%s: %s -> %s (allowed: %s)", ErrInvalidTransition, e.From, e.To, list)
}

// Unwrap returns ErrInvalidTransition so callers can use errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is returned when the actor is not the approver scheduled for the current step
	ErrNotAuthorized = errors.New("not authorized to approve this step")

	// ErrInvalidDecision is returned for decisions other than approved or rejected
	ErrInvalidDecision = errors.New("invalid approval decision")
)

// NotAuthorizedError identifies who tried to act and who was expected
type NotAuthorizedError struct {
	Step           int
	UserID         string
	ExpectedUserID string
}

// Error implements the error interface.
func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("%s: step %d is assigned to %s, not %s", ErrNotAuthorized, e.Step, e.ExpectedUserID, e.UserID)
}

// Unwrap returns ErrNotAuthorized.
func (e *NotAuthorizedError) Unwrap() error {
	return ErrNotAuthorized
}

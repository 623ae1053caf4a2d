package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

var (
	// ErrValidation is returned for malformed command input
	ErrValidation = errors.New("validation failed")

	// ErrNotPendingApproval is returned when approve/reject is attempted outside submitted/under_review
	ErrNotPendingApproval = errors.New("record is not pending approval")

	// ErrWrongRecordType is returned when a payable-only command targets a receivable
	ErrWrongRecordType = errors.New("wrong record type")
)

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotPendingApprovalError carries the status the record was actually in
type NotPendingApprovalError struct {
	Status workflow.Status
}

// Error implements the error interface.
func (e *NotPendingApprovalError) Error() string {
	return fmt.Sprintf("%s: status is %s", ErrNotPendingApproval, e.Status)
}

// Unwrap returns ErrNotPendingApproval.
func (e *NotPendingApprovalError) Unwrap() error {
	return ErrNotPendingApproval
}

// WrongRecordTypeError carries the expected and actual record types
type WrongRecordTypeError struct {
	Expected entity.RecordType
	Actual   entity.RecordType
}

// Error implements the error interface.
func (e *WrongRecordTypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrWrongRecordType, e.Expected, e.Actual)
}

// Unwrap returns ErrWrongRecordType.
func (e *WrongRecordTypeError) Unwrap() error {
	return ErrWrongRecordType
}

func validationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

var (
	// ErrNotFound is returned when a record does not exist in the project
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record changed since it was loaded
	ErrConflict = errors.New("record was modified concurrently")

	// ErrDuplicate is returned when a record number is already used in the project
	ErrDuplicate = errors.New("record number already exists")
)

// RecordUpdate is a partial update applied by Persist. Nil fields are left untouched.
type RecordUpdate struct {
	// ExpectedVersion must match the stored version or Persist fails with ErrConflict
	ExpectedVersion int64

	Status           *workflow.Status
	ApprovalWorkflow *entity.ApprovalWorkflow
	PaidDate         *time.Time
	PaidAmount       *decimal.Decimal
	PaymentMethod    *string
	PaymentDetail    *entity.PaymentDetail
	Invoicing        *entity.InvoicingDetails

	UpdatedBy string
	UpdatedAt time.Time
}

// Apply writes the non-nil fields of u onto r and bumps the version
func (u RecordUpdate) Apply(r *entity.BillingRecord) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.ApprovalWorkflow != nil {
		r.ApprovalWorkflow = u.ApprovalWorkflow.Clone()
	}
	if u.PaidDate != nil {
		t := *u.PaidDate
		r.PaidDate = &t
	}
	if u.PaidAmount != nil {
		a := *u.PaidAmount
		r.PaidAmount = &a
	}
	if u.PaymentMethod != nil {
		r.PaymentMethod = *u.PaymentMethod
	}
	if u.PaymentDetail != nil {
		d := *u.PaymentDetail
		r.PaymentDetail = &d
	}
	if u.Invoicing != nil {
		inv := *u.Invoicing
		r.Invoicing = &inv
	}
	if u.UpdatedBy != "" {
		r.UpdatedBy = u.UpdatedBy
	}
	if !u.UpdatedAt.IsZero() {
		r.UpdatedAt = u.UpdatedAt
	}
	r.Version++
}

// RecordStore defines persistence operations for billing records
type RecordStore interface {
	// Create inserts a new record; fails with ErrDuplicate on a reused record number
	Create(ctx context.Context, record *entity.BillingRecord) error

	// Load retrieves a record; fails with ErrNotFound
	Load(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error)

	// Persist applies a partial update with a version check and returns the stored record
	Persist(ctx context.Context, projectID, recordID string, update RecordUpdate) (*entity.BillingRecord, error)

	// ListByProject returns every record of a project ordered by creation time
	ListByProject(ctx context.Context, projectID string) ([]*entity.BillingRecord, error)
}

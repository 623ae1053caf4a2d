package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/application/dispatcher"
	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/domain/approval"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/event"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SubmitOptions configures a submission
type SubmitOptions struct {
	// Approvers replaces the roster when non-empty; list order is step order
	Approvers []entity.Approver
	Comments  string
}

// DecisionOptions carries the approver's comments or rejection reason
type DecisionOptions struct {
	Comments string
}

// InvoiceOptions is the invoicing metadata stored with the invoiced status
type InvoiceOptions struct {
	InvoiceNumber string
	InvoiceDate   time.Time
	TaxID         string
	Amount        decimal.Decimal
	AttachmentIDs []string
}

// PaymentOptions describes one incremental payment
type PaymentOptions struct {
	// Amount is the increment of this payment, not a running total
	Amount        decimal.Decimal
	PaidDate      time.Time
	PaymentMethod string
	Detail        *entity.PaymentDetail
}

// LifecycleService drives a billing record through its lifecycle
type LifecycleService interface {
	Submit(ctx context.Context, projectID, recordID string, actor entity.Actor, opts SubmitOptions) (*entity.BillingRecord, error)
	Approve(ctx context.Context, projectID, recordID string, actor entity.Actor, opts DecisionOptions) (*entity.BillingRecord, error)
	Reject(ctx context.Context, projectID, recordID string, actor entity.Actor, reason string) (*entity.BillingRecord, error)
	Cancel(ctx context.Context, projectID, recordID string, actor entity.Actor, reason string) (*entity.BillingRecord, error)
	ReturnToDraft(ctx context.Context, projectID, recordID string, actor entity.Actor, comments string) (*entity.BillingRecord, error)

	// MarkAsInvoiced and MarkAsPaid apply to payables only
	MarkAsInvoiced(ctx context.Context, projectID, recordID string, actor entity.Actor, opts InvoiceOptions) (*entity.BillingRecord, error)
	MarkAsPaid(ctx context.Context, projectID, recordID string, actor entity.Actor, opts PaymentOptions) (*entity.BillingRecord, error)

	// IssueInvoice and RecordCollection apply to receivables only
	IssueInvoice(ctx context.Context, projectID, recordID string, actor entity.Actor, opts InvoiceOptions) (*entity.BillingRecord, error)
	RecordCollection(ctx context.Context, projectID, recordID string, actor entity.Actor, opts PaymentOptions) (*entity.BillingRecord, error)
}

type lifecycleServiceImpl struct {
	store       port.RecordStore
	transitions *workflow.TransitionTable
	approvals   *approval.Engine
	publisher   dispatcher.Publisher
	logger      Logger
	now         func() time.Time
}

// LifecycleOption configures the lifecycle service
type LifecycleOption func(*lifecycleServiceImpl)

// WithPublisher sets the bus lifecycle events are published to
func WithPublisher(p dispatcher.Publisher) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.publisher = p
	}
}

// WithApprovalEngine overrides the approval engine
func WithApprovalEngine(e *approval.Engine) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.approvals = e
	}
}

// WithTransitions overrides the transition table
func WithTransitions(t *workflow.TransitionTable) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.transitions = t
	}
}

// WithClock overrides the time source for history entries and update stamps
func WithClock(now func() time.Time) LifecycleOption {
	return func(s *lifecycleServiceImpl) {
		s.now = now
	}
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(store port.RecordStore, logger Logger, opts ...LifecycleOption) LifecycleService {
	s := &lifecycleServiceImpl{
		store:       store,
		transitions: workflow.BillingTransitions,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.approvals == nil {
		s.approvals = approval.NewEngine(approval.WithClock(s.now))
	}
	return s
}

// Submit moves a draft into the approval workflow
func (s *lifecycleServiceImpl) Submit(ctx context.Context, projectID, recordID string, actor entity.Actor, opts SubmitOptions) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.transitions.ValidateTransition(record.Status, workflow.StatusSubmitted); err != nil {
		return nil, s.fail("submit", record, err)
	}
	if err := validateSubmittable(record); err != nil {
		return nil, s.fail("submit", record, err)
	}

	wf := s.approvals.Initialize(record.ApprovalWorkflow, opts.Approvers)
	wf = s.appendHistory(wf, 0, entity.ActionSubmit, actor, record.Status, workflow.StatusSubmitted, opts.Comments)

	status := workflow.StatusSubmitted
	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:           &status,
		ApprovalWorkflow: &wf,
	})
	if err != nil {
		return nil, s.fail("submit", record, err)
	}

	s.publish(ctx, updated, actor, submittedEvent(updated.RecordType), map[string]interface{}{
		"total_steps": wf.TotalSteps,
	})
	s.logger.Info("Record submitted", "project_id", projectID, "record_id", recordID, "total_steps", wf.TotalSteps)
	return updated, nil
}

// Approve records an approval on the current step. The record becomes approved once
// every step is approved and stays under_review otherwise.
func (s *lifecycleServiceImpl) Approve(ctx context.Context, projectID, recordID string, actor entity.Actor, opts DecisionOptions) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.checkDecidable(record, actor); err != nil {
		return nil, s.fail("approve", record, err)
	}

	step := record.ApprovalWorkflow.CurrentStep
	wf, err := s.approvals.RecordDecision(record.ApprovalWorkflow, actor, entity.ApproverApproved, opts.Comments)
	if err != nil {
		return nil, s.fail("approve", record, err)
	}

	fullyApproved := s.approvals.IsFullyApproved(wf)
	status := workflow.StatusUnderReview
	if fullyApproved {
		status = workflow.StatusApproved
	}
	if err := s.transitions.ValidateStatusUpdate(record.Status, status); err != nil {
		return nil, s.fail("approve", record, err)
	}

	wf = s.appendHistory(wf, step, entity.ActionApprove, actor, record.Status, status, opts.Comments)
	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:           &status,
		ApprovalWorkflow: &wf,
	})
	if err != nil {
		return nil, s.fail("approve", record, err)
	}

	s.publish(ctx, updated, actor, approvedEvent(updated.RecordType), map[string]interface{}{
		"step":              step,
		"is_fully_approved": fullyApproved,
	})
	s.logger.Info("Record approved", "project_id", projectID, "record_id", recordID, "step", step, "status", status)
	return updated, nil
}

// Reject records a rejection on the current step. A reason is required.
func (s *lifecycleServiceImpl) Reject(ctx context.Context, projectID, recordID string, actor entity.Actor, reason string) (*entity.BillingRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason", "rejection reason is required")
	}

	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.checkDecidable(record, actor); err != nil {
		return nil, s.fail("reject", record, err)
	}

	step := record.ApprovalWorkflow.CurrentStep
	wf, err := s.approvals.RecordDecision(record.ApprovalWorkflow, actor, entity.ApproverRejected, reason)
	if err != nil {
		return nil, s.fail("reject", record, err)
	}

	status := workflow.StatusRejected
	if err := s.transitions.ValidateTransition(record.Status, status); err != nil {
		return nil, s.fail("reject", record, err)
	}

	wf = s.appendHistory(wf, step, entity.ActionReject, actor, record.Status, status, reason)
	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:           &status,
		ApprovalWorkflow: &wf,
	})
	if err != nil {
		return nil, s.fail("reject", record, err)
	}

	s.publish(ctx, updated, actor, rejectedEvent(updated.RecordType), map[string]interface{}{
		"step":   step,
		"reason": reason,
	})
	s.logger.Info("Record rejected", "project_id", projectID, "record_id", recordID, "step", step)
	return updated, nil
}

// Cancel abandons a draft. Cancellation is logged but not published.
func (s *lifecycleServiceImpl) Cancel(ctx context.Context, projectID, recordID string, actor entity.Actor, reason string) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	status := workflow.StatusCancelled
	if err := s.transitions.ValidateTransition(record.Status, status); err != nil {
		return nil, s.fail("cancel", record, err)
	}

	wf := s.appendHistory(record.ApprovalWorkflow, record.ApprovalWorkflow.CurrentStep, entity.ActionCancel, actor, record.Status, status, reason)
	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:           &status,
		ApprovalWorkflow: &wf,
	})
	if err != nil {
		return nil, s.fail("cancel", record, err)
	}

	s.logger.Info("Record cancelled", "project_id", projectID, "record_id", recordID, "reason", reason)
	return updated, nil
}

// ReturnToDraft reopens a rejected record for editing and rewinds its workflow
func (s *lifecycleServiceImpl) ReturnToDraft(ctx context.Context, projectID, recordID string, actor entity.Actor, comments string) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	status := workflow.StatusDraft
	if err := s.transitions.ValidateTransition(record.Status, status); err != nil {
		return nil, s.fail("return", record, err)
	}

	wf := s.approvals.Reset(record.ApprovalWorkflow)
	wf = s.appendHistory(wf, 0, entity.ActionReturn, actor, record.Status, status, comments)
	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:           &status,
		ApprovalWorkflow: &wf,
	})
	if err != nil {
		return nil, s.fail("return", record, err)
	}

	s.logger.Info("Record returned to draft", "project_id", projectID, "record_id", recordID)
	return updated, nil
}

// MarkAsInvoiced stores the contractor's invoice on an approved payable
func (s *lifecycleServiceImpl) MarkAsInvoiced(ctx context.Context, projectID, recordID string, actor entity.Actor, opts InvoiceOptions) (*entity.BillingRecord, error) {
	return s.invoice(ctx, "invoice", entity.RecordTypePayable, projectID, recordID, actor, opts)
}

// IssueInvoice stores the invoice issued to the owner on an approved receivable
func (s *lifecycleServiceImpl) IssueInvoice(ctx context.Context, projectID, recordID string, actor entity.Actor, opts InvoiceOptions) (*entity.BillingRecord, error) {
	return s.invoice(ctx, "issue", entity.RecordTypeReceivable, projectID, recordID, actor, opts)
}

// MarkAsPaid adds one payment to a payable. Amounts accumulate across calls.
func (s *lifecycleServiceImpl) MarkAsPaid(ctx context.Context, projectID, recordID string, actor entity.Actor, opts PaymentOptions) (*entity.BillingRecord, error) {
	return s.settle(ctx, "pay", entity.RecordTypePayable, projectID, recordID, actor, opts)
}

// RecordCollection adds one received payment to a receivable. Amounts accumulate across calls.
func (s *lifecycleServiceImpl) RecordCollection(ctx context.Context, projectID, recordID string, actor entity.Actor, opts PaymentOptions) (*entity.BillingRecord, error) {
	return s.settle(ctx, "collect", entity.RecordTypeReceivable, projectID, recordID, actor, opts)
}

func (s *lifecycleServiceImpl) invoice(ctx context.Context, op string, want entity.RecordType, projectID, recordID string, actor entity.Actor, opts InvoiceOptions) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	if record.RecordType != want {
		return nil, s.fail(op, record, &WrongRecordTypeError{Expected: want, Actual: record.RecordType})
	}

	status := workflow.StatusInvoiced
	if err := s.transitions.ValidateTransition(record.Status, status); err != nil {
		return nil, s.fail(op, record, err)
	}
	if strings.TrimSpace(opts.InvoiceNumber) == "" {
		return nil, s.fail(op, record, validationError("invoice_number", "invoice number is required"))
	}
	if opts.Amount.IsNegative() {
		return nil, s.fail(op, record, validationError("amount", "invoice amount must not be negative"))
	}

	invoiceDate := opts.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = s.now()
	}
	invoicing := &entity.InvoicingDetails{
		InvoiceNumber: opts.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		TaxID:         opts.TaxID,
		Amount:        opts.Amount,
		AttachmentIDs: append([]string(nil), opts.AttachmentIDs...),
	}

	updated, err := s.persist(ctx, record, actor, port.RecordUpdate{
		Status:    &status,
		Invoicing: invoicing,
	})
	if err != nil {
		return nil, s.fail(op, record, err)
	}

	s.logger.Info("Record invoiced", "project_id", projectID, "record_id", recordID, "invoice_number", opts.InvoiceNumber)
	return updated, nil
}

func (s *lifecycleServiceImpl) settle(ctx context.Context, op string, want entity.RecordType, projectID, recordID string, actor entity.Actor, opts PaymentOptions) (*entity.BillingRecord, error) {
	record, err := s.load(ctx, projectID, recordID)
	if err != nil {
		return nil, err
	}

	if record.RecordType != want {
		return nil, s.fail(op, record, &WrongRecordTypeError{Expected: want, Actual: record.RecordType})
	}
	if !opts.Amount.IsPositive() {
		return nil, s.fail(op, record, validationError("amount", "payment amount must be positive"))
	}

	paid := record.PaidOrZero().Add(opts.Amount)
	fullyPaid := paid.GreaterThanOrEqual(record.Total)
	status := workflow.StatusPartialPaid
	if fullyPaid {
		status = workflow.StatusPaid
	}
	if err := s.transitions.ValidateStatusUpdate(record.Status, status); err != nil {
		return nil, s.fail(op, record, err)
	}

	if paid.GreaterThan(record.Total) {
		return nil, s.fail(op, record, validationError("amount",
			fmt.Sprintf("cumulative payment %s exceeds total %s", paid.StringFixed(2), record.Total.StringFixed(2))))
	}

	paidDate := opts.PaidDate
	if paidDate.IsZero() {
		paidDate = s.now()
	}
	update := port.RecordUpdate{
		Status:     &status,
		PaidDate:   &paidDate,
		PaidAmount: &paid,
	}
	if opts.PaymentMethod != "" {
		method := opts.PaymentMethod
		update.PaymentMethod = &method
	}
	if opts.Detail != nil {
		detail := *opts.Detail
		update.PaymentDetail = &detail
	}

	updated, err := s.persist(ctx, record, actor, update)
	if err != nil {
		return nil, s.fail(op, record, err)
	}

	s.publish(ctx, updated, actor, paidEvent(updated.RecordType), map[string]interface{}{
		"amount":        opts.Amount.StringFixed(2),
		"paid_amount":   paid.StringFixed(2),
		"is_fully_paid": fullyPaid,
	})
	s.logger.Info("Payment recorded", "project_id", projectID, "record_id", recordID,
		"amount", opts.Amount.StringFixed(2), "paid_amount", paid.StringFixed(2), "status", status)
	return updated, nil
}

// checkDecidable guards approve and reject
func (s *lifecycleServiceImpl) checkDecidable(record *entity.BillingRecord, actor entity.Actor) error {
	if !workflow.IsPendingApproval(record.Status) {
		return &NotPendingApprovalError{Status: record.Status}
	}
	return s.approvals.CheckPermission(record.ApprovalWorkflow, actor)
}

func (s *lifecycleServiceImpl) load(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error) {
	record, err := s.store.Load(ctx, projectID, recordID)
	if err != nil {
		s.logger.Error("Failed to load record", "error", err, "project_id", projectID, "record_id", recordID)
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	return record, nil
}

func (s *lifecycleServiceImpl) persist(ctx context.Context, record *entity.BillingRecord, actor entity.Actor, update port.RecordUpdate) (*entity.BillingRecord, error) {
	update.ExpectedVersion = record.Version
	update.UpdatedBy = actor.UserID
	update.UpdatedAt = s.now()

	updated, err := s.store.Persist(ctx, record.ProjectID, record.ID, update)
	if err != nil {
		return nil, fmt.Errorf("persist record %s: %w", record.ID, err)
	}
	return updated, nil
}

func (s *lifecycleServiceImpl) appendHistory(w entity.ApprovalWorkflow, step int, action entity.HistoryAction, actor entity.Actor, from, to workflow.Status, comments string) entity.ApprovalWorkflow {
	next := w.Clone()
	next.History = append(next.History, entity.ApprovalHistoryEntry{
		ID:             uuid.NewString(),
		StepNumber:     step,
		Action:         action,
		UserID:         actor.UserID,
		UserName:       actor.UserName,
		Timestamp:      s.now(),
		PreviousStatus: from,
		NewStatus:      to,
		Comments:       comments,
	})
	return next
}

// publish runs after the write committed, so a handler failure is only logged
func (s *lifecycleServiceImpl) publish(ctx context.Context, record *entity.BillingRecord, actor entity.Actor, eventType event.Type, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}

	payload["record_number"] = record.RecordNumber
	payload["record_type"] = record.RecordType.String()
	payload["status"] = record.Status.String()

	evt := event.NewEvent(eventType, record.ProjectID, record.ID,
		event.Actor{UserID: actor.UserID, UserName: actor.UserName}, payload)

	if err := s.publisher.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "event_type", eventType, "record_id", record.ID)
	}
}

func (s *lifecycleServiceImpl) fail(op string, record *entity.BillingRecord, err error) error {
	s.logger.Error("Lifecycle command failed", "operation", op, "error", err,
		"project_id", record.ProjectID, "record_id", record.ID, "status", record.Status)
	return err
}

func validateSubmittable(record *entity.BillingRecord) error {
	switch {
	case len(record.LineItems) == 0:
		return validationError("line_items", "at least one line item is required")
	case !record.Total.IsPositive():
		return validationError("total", "total must be positive")
	case record.BillingParty == nil:
		return validationError("billing_party", "billing party is required")
	case record.PayingParty == nil:
		return validationError("paying_party", "paying party is required")
	}
	return nil
}

func submittedEvent(t entity.RecordType) event.Type {
	if t == entity.RecordTypePayable {
		return event.TypePaymentSubmitted
	}
	return event.TypeRecordSubmitted
}

func approvedEvent(t entity.RecordType) event.Type {
	if t == entity.RecordTypePayable {
		return event.TypePaymentApproved
	}
	return event.TypeRecordApproved
}

func rejectedEvent(t entity.RecordType) event.Type {
	if t == entity.RecordTypePayable {
		return event.TypePaymentRejected
	}
	return event.TypeRecordRejected
}

func paidEvent(t entity.RecordType) event.Type {
	if t == entity.RecordTypePayable {
		return event.TypePaymentCompleted
	}
	return event.TypeRecordPaid
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// BillingPolicy holds the defaults applied to new drafts
type BillingPolicy struct {
	TaxRate           decimal.Decimal
	DefaultTotalSteps int
	PaymentDueDays    int
}

// DefaultBillingPolicy returns the policy used when none is configured
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		TaxRate:           decimal.Zero,
		DefaultTotalSteps: entity.DefaultTotalSteps,
		PaymentDueDays:    30,
	}
}

// DraftInput describes a record to create. Owner and Contractor are assigned to
// billing/paying party according to the record type.
type DraftInput struct {
	RecordType   entity.RecordType
	RecordNumber string
	ContractID   string
	AcceptanceID string
	TaskIDs      []string
	LineItems    []entity.LineItem

	// TaxRate overrides the policy rate when set
	TaxRate           *decimal.Decimal
	BillingPercentage decimal.Decimal

	Owner      *entity.Party
	Contractor *entity.Party

	DueDate time.Time
}

// BatchFailure is one rejected item of a batch
type BatchFailure struct {
	Index        int    `json:"index"`
	ContractorID string `json:"contractor_id"`
	Err          error  `json:"-"`
	Message      string `json:"error"`
}

// BatchResult reports a partially successful batch
type BatchResult struct {
	Created []*entity.BillingRecord `json:"created"`
	Failed  []BatchFailure          `json:"failed"`
}

// RecordService creates and reads billing records
type RecordService interface {
	CreateDraft(ctx context.Context, projectID string, actor entity.Actor, input DraftInput) (*entity.BillingRecord, error)
	GeneratePayables(ctx context.Context, projectID string, actor entity.Actor, inputs []DraftInput) (*BatchResult, error)
	Get(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error)
	List(ctx context.Context, projectID string) ([]*entity.BillingRecord, error)
}

type recordServiceImpl struct {
	store  port.RecordStore
	policy BillingPolicy
	logger Logger
	now    func() time.Time
}

// NewRecordService creates a new RecordService
func NewRecordService(store port.RecordStore, policy BillingPolicy, logger Logger) RecordService {
	if policy.DefaultTotalSteps < 1 {
		policy.DefaultTotalSteps = entity.DefaultTotalSteps
	}
	return &recordServiceImpl{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// CreateDraft computes amounts from the line items and stores a new draft
func (s *recordServiceImpl) CreateDraft(ctx context.Context, projectID string, actor entity.Actor, input DraftInput) (*entity.BillingRecord, error) {
	record, err := s.buildDraft(projectID, actor, input)
	if err != nil {
		s.logger.Error("Invalid draft", "error", err, "project_id", projectID)
		return nil, err
	}

	if err := s.store.Create(ctx, record); err != nil {
		s.logger.Error("Failed to create draft", "error", err, "project_id", projectID, "record_number", record.RecordNumber)
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.logger.Info("Draft created",
		"project_id", projectID,
		"record_id", record.ID,
		"record_number", record.RecordNumber,
		"record_type", record.RecordType,
		"total", record.Total.StringFixed(2))
	return record, nil
}

// GeneratePayables creates one payable draft per input. Failed items are reported and
// the remaining items are still created.
func (s *recordServiceImpl) GeneratePayables(ctx context.Context, projectID string, actor entity.Actor, inputs []DraftInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, validationError("payables", "at least one payable is required")
	}

	result := &BatchResult{
		Created: make([]*entity.BillingRecord, 0, len(inputs)),
		Failed:  []BatchFailure{},
	}
	for i, input := range inputs {
		input.RecordType = entity.RecordTypePayable

		record, err := s.CreateDraft(ctx, projectID, actor, input)
		if err != nil {
			contractorID := ""
			if input.Contractor != nil {
				contractorID = input.Contractor.ID
			}
			result.Failed = append(result.Failed, BatchFailure{
				Index:        i,
				ContractorID: contractorID,
				Err:          err,
				Message:      err.Error(),
			})
			continue
		}
		result.Created = append(result.Created, record)
	}

	s.logger.Info("Payables generated", "project_id", projectID,
		"created", len(result.Created), "failed", len(result.Failed))
	return result, nil
}

// Get returns one record of a project
func (s *recordServiceImpl) Get(ctx context.Context, projectID, recordID string) (*entity.BillingRecord, error) {
	record, err := s.store.Load(ctx, projectID, recordID)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", recordID, err)
	}
	return record, nil
}

// List returns every record of a project
func (s *recordServiceImpl) List(ctx context.Context, projectID string) ([]*entity.BillingRecord, error) {
	records, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("Failed to list records", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *recordServiceImpl) buildDraft(projectID string, actor entity.Actor, input DraftInput) (*entity.BillingRecord, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, validationError("project_id", "project is required")
	}
	if !input.RecordType.IsValid() {
		return nil, validationError("record_type", fmt.Sprintf("unknown record type %q", input.RecordType))
	}
	if strings.TrimSpace(input.ContractID) == "" {
		return nil, validationError("contract_id", "contract is required")
	}

	taxRate := s.policy.TaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, validationError("tax_rate", "tax rate must be between 0 and 1")
	}

	items := make([]entity.LineItem, len(input.LineItems))
	subtotal := decimal.Zero
	for i, item := range input.LineItems {
		if item.Quantity.IsNegative() {
			return nil, validationError(fmt.Sprintf("line_items[%d].quantity", i), "quantity must not be negative")
		}
		if item.CurrentBilling.IsNegative() {
			return nil, validationError(fmt.Sprintf("line_items[%d].current_billing", i), "current billing must not be negative")
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		items[i] = item
		subtotal = subtotal.Add(item.CurrentBilling)
	}
	tax := subtotal.Mul(taxRate).Round(2)

	now := s.now()
	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = now.AddDate(0, 0, s.policy.PaymentDueDays)
	}

	record := &entity.BillingRecord{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		RecordNumber:      input.RecordNumber,
		RecordType:        input.RecordType,
		ContractID:        input.ContractID,
		AcceptanceID:      input.AcceptanceID,
		TaskIDs:           append([]string{}, input.TaskIDs...),
		LineItems:         items,
		Subtotal:          subtotal,
		Tax:               tax,
		TaxRate:           taxRate,
		Total:             subtotal.Add(tax),
		BillingPercentage: input.BillingPercentage,
		Status:            workflow.StatusDraft,
		ApprovalWorkflow:  entity.NewApprovalWorkflow(s.policy.DefaultTotalSteps),
		DueDate:           dueDate,
		CreatedBy:         actor.UserID,
		CreatedAt:         now,
		UpdatedBy:         actor.UserID,
		UpdatedAt:         now,
		Version:           1,
	}
	if record.RecordNumber == "" {
		record.RecordNumber = recordNumber(input.RecordType, now)
	}

	owner, contractor := copyParty(input.Owner), copyParty(input.Contractor)
	if input.RecordType == entity.RecordTypeReceivable {
		record.BillingParty, record.PayingParty = contractor, owner
	} else {
		record.BillingParty, record.PayingParty = owner, contractor
	}
	return record, nil
}

// recordNumber formats AR-202601-1A2B3C / AP-202601-1A2B3C
func recordNumber(t entity.RecordType, now time.Time) string {
	prefix := "AR"
	if t == entity.RecordTypePayable {
		prefix = "AP"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("200601"), suffix)
}

func copyParty(p *entity.Party) *entity.Party {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

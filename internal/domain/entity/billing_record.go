package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// RecordType distinguishes the two money flows of a project
type RecordType string

const (
	// RecordTypeReceivable is billed by the contractor to the project owner
	RecordTypeReceivable RecordType = "receivable"
	// RecordTypePayable is owed by the project to a contractor
	RecordTypePayable RecordType = "payable"
)

// IsValid returns true if the record type is one of the defined constants
func (t RecordType) IsValid() bool {
	return t == RecordTypeReceivable || t == RecordTypePayable
}

// String returns the string representation of the record type
func (t RecordType) String() string {
	return string(t)
}

// Party is one side of a billing record (issuer or payer)
type Party struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TaxID        string `json:"tax_id"`
	Address      string `json:"address"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

// LineItem is a single billed line of a record.
// Subtotal is expected to equal the sum of CurrentBilling across items.
type LineItem struct {
	ID                   string          `json:"id"`
	SourceItemID         string          `json:"source_item_id"`
	Description          string          `json:"description"`
	Unit                 string          `json:"unit"`
	Quantity             decimal.Decimal `json:"quantity"`
	UnitPrice            decimal.Decimal `json:"unit_price"`
	Amount               decimal.Decimal `json:"amount"`
	CompletionPercentage decimal.Decimal `json:"completion_percentage"`
	PreviousBilled       decimal.Decimal `json:"previous_billed"`
	CurrentBilling       decimal.Decimal `json:"current_billing"`
}

// InvoicingDetails holds the contractor's invoice metadata recorded on a payable
type InvoicingDetails struct {
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	TaxID         string          `json:"tax_id"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentIDs []string        `json:"attachment_ids,omitempty"`
}

// PaymentDetail holds bank-side information about the latest payment on a payable
type PaymentDetail struct {
	Reference   string `json:"reference,omitempty"`
	BankName    string `json:"bank_name,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// BillingRecord is the unit of money flow for a project (receivable or payable invoice)
type BillingRecord struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	RecordNumber string     `json:"record_number"`
	RecordType   RecordType `json:"record_type"`

	ContractID   string   `json:"contract_id"`
	AcceptanceID string   `json:"acceptance_id,omitempty"`
	TaskIDs      []string `json:"task_ids"`

	LineItems []LineItem `json:"line_items"`

	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	Total             decimal.Decimal `json:"total"`
	BillingPercentage decimal.Decimal `json:"billing_percentage"`

	BillingParty *Party `json:"billing_party"`
	PayingParty  *Party `json:"paying_party"`

	Status           workflow.Status  `json:"status"`
	ApprovalWorkflow ApprovalWorkflow `json:"approval_workflow"`

	DueDate       time.Time         `json:"due_date"`
	PaidDate      *time.Time        `json:"paid_date,omitempty"`
	PaidAmount    *decimal.Decimal  `json:"paid_amount,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	PaymentDetail *PaymentDetail    `json:"payment_detail,omitempty"`
	Invoicing     *InvoicingDetails `json:"invoicing,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is compared-and-swapped by the record store on every update
	Version int64 `json:"version"`
}

// HasTask reports whether the record is linked to the given task
func (r *BillingRecord) HasTask(taskID string) bool {
	for _, id := range r.TaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// PaidOrZero returns the cumulative paid amount, or zero when nothing was paid yet
func (r *BillingRecord) PaidOrZero() decimal.Decimal {
	if r.PaidAmount == nil {
		return decimal.Zero
	}
	return *r.PaidAmount
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (r *BillingRecord) Clone() *BillingRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.TaskIDs = append([]string(nil), r.TaskIDs...)
	c.LineItems = append([]LineItem(nil), r.LineItems...)
	if r.BillingParty != nil {
		p := *r.BillingParty
		c.BillingParty = &p
	}
	if r.PayingParty != nil {
		p := *r.PayingParty
		c.PayingParty = &p
	}
	if r.PaidDate != nil {
		t := *r.PaidDate
		c.PaidDate = &t
	}
	if r.PaidAmount != nil {
		a := *r.PaidAmount
		c.PaidAmount = &a
	}
	if r.PaymentDetail != nil {
		d := *r.PaymentDetail
		c.PaymentDetail = &d
	}
	if r.Invoicing != nil {
		inv := *r.Invoicing
		inv.AttachmentIDs = append([]string(nil), r.Invoicing.AttachmentIDs...)
		c.Invoicing = &inv
	}
	c.ApprovalWorkflow = r.ApprovalWorkflow.Clone()
	return &c
}

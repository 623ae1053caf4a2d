package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingProgress is the receivable-side progress of one task
type BillingProgress struct {
	TaskID               string          `json:"task_id"`
	TotalBillable        decimal.Decimal `json:"total_billable"`
	BilledAmount         decimal.Decimal `json:"billed_amount"`
	PaidAmount           decimal.Decimal `json:"paid_amount"`
	BillingPercentage    float64         `json:"billing_percentage"`
	CollectionPercentage float64         `json:"collection_percentage"`
	RecordCount          int             `json:"record_count"`
}

// PaymentProgress is the payable-side progress of one task
type PaymentProgress struct {
	TaskID             string          `json:"task_id"`
	TotalPayable       decimal.Decimal `json:"total_payable"`
	ApprovedAmount     decimal.Decimal `json:"approved_amount"`
	PaidAmount         decimal.Decimal `json:"paid_amount"`
	ApprovalPercentage float64         `json:"approval_percentage"`
	PaymentPercentage  float64         `json:"payment_percentage"`
	RecordCount        int             `json:"record_count"`
}

// ReceivablesSummary rolls up receivable records of a project
type ReceivablesSummary struct {
	Total          decimal.Decimal `json:"total"`
	Collected      decimal.Decimal `json:"collected"`
	Pending        decimal.Decimal `json:"pending"`
	CollectionRate float64         `json:"collection_rate"`
	Count          int             `json:"count"`
}

// PayablesSummary rolls up payable records of a project
type PayablesSummary struct {
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Pending     decimal.Decimal `json:"pending"`
	PaymentRate float64         `json:"payment_rate"`
	Count       int             `json:"count"`
}

// OverdueBucket counts overdue records of one record type
type OverdueBucket struct {
	Count       int             `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// OverdueSummary splits overdue records by record type
type OverdueSummary struct {
	ProjectID   string        `json:"project_id"`
	Receivables OverdueBucket `json:"receivables"`
	Payables    OverdueBucket `json:"payables"`
	AsOf        time.Time     `json:"as_of"`
}

// MonthlySummary holds current calendar month activity
type MonthlySummary struct {
	PeriodStart          time.Time       `json:"period_start"`
	ReceivablesBilled    decimal.Decimal `json:"receivables_billed"`
	ReceivablesCollected decimal.Decimal `json:"receivables_collected"`
	PayablesApproved     decimal.Decimal `json:"payables_approved"`
	PayablesPaid         decimal.Decimal `json:"payables_paid"`
}

// FinancialSummary is the cached project-level rollup
type FinancialSummary struct {
	ProjectID         string             `json:"project_id"`
	Receivables       ReceivablesSummary `json:"receivables"`
	Payables          PayablesSummary    `json:"payables"`
	GrossProfit       decimal.Decimal    `json:"gross_profit"`
	GrossProfitMargin float64            `json:"gross_profit_margin"`
	Overdue           OverdueSummary     `json:"overdue"`
	ThisMonth         MonthlySummary     `json:"this_month"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// ContractorSummary rolls up payables owed to one contractor
type ContractorSummary struct {
	ContractorID   string          `json:"contractor_id"`
	ContractorName string          `json:"contractor_name"`
	TotalPayable   decimal.Decimal `json:"total_payable"`
	Paid           decimal.Decimal `json:"paid"`
	Pending        decimal.Decimal `json:"pending"`
	RecordCount    int             `json:"record_count"`
}

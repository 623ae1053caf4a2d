// Package aggregation derives progress and summary metrics from billing records.
// Every metric is a pure function of the record slice it is given; the only state is
// the per-project summary cache, which is invalidated by billing events.
package aggregation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/application/dispatcher"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/event"
)

// invalidatorName identifies the cache handler on the event bus
const invalidatorName = "summary-cache-invalidator"

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Engine computes financial metrics and owns the summary cache
type Engine interface {
	BillingProgress(records []*entity.BillingRecord, taskID string, totalBillable decimal.Decimal) entity.BillingProgress
	PaymentProgress(records []*entity.BillingRecord, taskID string, totalPayable decimal.Decimal) entity.PaymentProgress

	// FinancialSummary recomputes the project rollup and overwrites the cached entry
	FinancialSummary(records []*entity.BillingRecord, projectID string) *entity.FinancialSummary
	OverdueSummary(records []*entity.BillingRecord, projectID string) entity.OverdueSummary
	ContractorSummary(records []*entity.BillingRecord, contractorID string) entity.ContractorSummary

	GetCachedSummary(projectID string) (*entity.FinancialSummary, bool)
	ClearCache()
	GetLastUpdated() *time.Time

	// HandleEvent drops the cached summary of the event's project
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type engineImpl struct {
	cache  SummaryCache
	now    func() time.Time
	logger Logger
}

// EngineOption configures the aggregation engine
type EngineOption func(*engineImpl)

// WithCache replaces the default in-memory cache
func WithCache(cache SummaryCache) EngineOption {
	return func(e *engineImpl) {
		e.cache = cache
	}
}

// WithClock overrides the time source used for overdue and monthly windows
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithLogger sets a logger for cache activity
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// NewEngine creates a new aggregation engine
func NewEngine(opts ...EngineOption) Engine {
	e := &engineImpl{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewMemoryCache()
	}
	return e
}

// NewSubscribedEngine creates an engine whose cache is invalidated by events from source
func NewSubscribedEngine(source dispatcher.Subscriber, opts ...EngineOption) Engine {
	e := NewEngine(opts...)
	source.SubscribeTypes(event.SummaryInvalidating, invalidatorName, e.HandleEvent)
	return e
}

func (e *engineImpl) BillingProgress(records []*entity.BillingRecord, taskID string, totalBillable decimal.Decimal) entity.BillingProgress {
	t := taskTotals(records, entity.RecordTypeReceivable, taskID)
	return entity.BillingProgress{
		TaskID:               taskID,
		TotalBillable:        totalBillable,
		BilledAmount:         t.approved,
		PaidAmount:           t.paid,
		BillingPercentage:    percentage(t.approved, totalBillable),
		CollectionPercentage: percentage(t.paid, t.approved),
		RecordCount:          t.count,
	}
}

func (e *engineImpl) PaymentProgress(records []*entity.BillingRecord, taskID string, totalPayable decimal.Decimal) entity.PaymentProgress {
	t := taskTotals(records, entity.RecordTypePayable, taskID)
	return entity.PaymentProgress{
		TaskID:             taskID,
		TotalPayable:       totalPayable,
		ApprovedAmount:     t.approved,
		PaidAmount:         t.paid,
		ApprovalPercentage: percentage(t.approved, totalPayable),
		PaymentPercentage:  percentage(t.paid, t.approved),
		RecordCount:        t.count,
	}
}

func (e *engineImpl) FinancialSummary(records []*entity.BillingRecord, projectID string) *entity.FinancialSummary {
	now := e.now()

	recv := partitionTotals(records, entity.RecordTypeReceivable)
	pay := partitionTotals(records, entity.RecordTypePayable)
	grossProfit := recv.paid.Sub(pay.paid)

	summary := &entity.FinancialSummary{
		ProjectID: projectID,
		Receivables: entity.ReceivablesSummary{
			Total:          recv.approved,
			Collected:      recv.paid,
			Pending:        recv.approved.Sub(recv.paid),
			CollectionRate: percentage(recv.paid, recv.approved),
			Count:          recv.count,
		},
		Payables: entity.PayablesSummary{
			Total:       pay.approved,
			Paid:        pay.paid,
			Pending:     pay.approved.Sub(pay.paid),
			PaymentRate: percentage(pay.paid, pay.approved),
			Count:       pay.count,
		},
		GrossProfit:       grossProfit,
		GrossProfitMargin: percentage(grossProfit, recv.paid),
		Overdue:           overdue(records, projectID, now),
		ThisMonth:         monthToDate(records, now),
		GeneratedAt:       now,
	}

	e.cache.Set(projectID, summary, now)
	e.logInfo("Financial summary cached", "project_id", projectID, "records", len(records))

	cp := *summary
	return &cp
}

func (e *engineImpl) OverdueSummary(records []*entity.BillingRecord, projectID string) entity.OverdueSummary {
	return overdue(records, projectID, e.now())
}

func (e *engineImpl) ContractorSummary(records []*entity.BillingRecord, contractorID string) entity.ContractorSummary {
	return contractorTotals(records, contractorID)
}

func (e *engineImpl) GetCachedSummary(projectID string) (*entity.FinancialSummary, bool) {
	return e.cache.Get(projectID)
}

func (e *engineImpl) ClearCache() {
	e.cache.Clear()
	e.logInfo("Summary cache cleared")
}

func (e *engineImpl) GetLastUpdated() *time.Time {
	return e.cache.LastUpdated()
}

func (e *engineImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if evt.ProjectID == "" {
		return fmt.Errorf("event %s has no project id", evt.ID)
	}

	e.cache.Invalidate(evt.ProjectID)
	e.logInfo("Summary cache invalidated", "project_id", evt.ProjectID, "event_type", evt.Type)
	return nil
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

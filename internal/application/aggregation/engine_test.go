package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/project-billing/internal/application/dispatcher"
	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/event"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %d, got %s %v", want, got, msgAndArgs)
}

func rec(recordType entity.RecordType, status workflow.Status, total int64, paid *int64) *entity.BillingRecord {
	r := &entity.BillingRecord{
		ID:          "r-" + string(status),
		ProjectID:   "proj-1",
		RecordType:  recordType,
		Status:      status,
		TaskIDs:     []string{"task-1"},
		Total:       d(total),
		DueDate:     now.AddDate(0, 1, 0),
		CreatedAt:   now.AddDate(0, -2, 0),
		PayingParty: &entity.Party{ID: "contractor-1", Name: "Builder Ltd"},
	}
	if paid != nil {
		p := d(*paid)
		r.PaidAmount = &p
	}
	return r
}

func amt(v int64) *int64 { return &v }

func TestBillingProgress_NoRecords(t *testing.T) {
	e := NewEngine(WithClock(clock))

	got := e.BillingProgress(nil, "task-1", d(100000))
	assertDec(t, 0, got.BilledAmount)
	assert.Equal(t, 0.0, got.BillingPercentage)
	assert.Equal(t, 0.0, got.CollectionPercentage)
	assert.Equal(t, 0, got.RecordCount)
}

func TestBillingProgress_OnlyApprovedCounts(t *testing.T) {
	e := NewEngine(WithClock(clock))
	records := []*entity.BillingRecord{
		rec(entity.RecordTypeReceivable, workflow.StatusApproved, 80000, nil),
		rec(entity.RecordTypeReceivable, workflow.StatusDraft, 20000, nil),
	}

	got := e.BillingProgress(records, "task-1", d(100000))
	assertDec(t, 80000, got.BilledAmount)
	assert.Equal(t, 80.0, got.BillingPercentage)
	assert.Equal(t, 0.0, got.CollectionPercentage)
}

func TestBillingProgress_FullyCollected(t *testing.T) {
	e := NewEngine(WithClock(clock))
	records := []*entity.BillingRecord{
		rec(entity.RecordTypeReceivable, workflow.StatusPaid, 80000, amt(80000)),
	}

	got := e.BillingProgress(records, "task-1", d(100000))
	assert.Equal(t, 100.0, got.CollectionPercentage)
	assert.Equal(t, 80.0, got.BillingPercentage)
}

func TestBillingProgress_Filtering(t *testing.T) {
	e := NewEngine(WithClock(clock))
	otherTask := rec(entity.RecordTypeReceivable, workflow.StatusApproved, 5000, nil)
	otherTask.TaskIDs = []string{"task-2"}
	records := []*entity.BillingRecord{
		rec(entity.RecordTypeReceivable, workflow.StatusPartialPaid, 3000, amt(1000)),
		rec(entity.RecordTypePayable, workflow.StatusApproved, 7000, nil),
		otherTask,
		nil,
	}

	got := e.BillingProgress(records, "task-1", d(9000))
	assertDec(t, 3000, got.BilledAmount)
	assertDec(t, 1000, got.PaidAmount)
	assert.Equal(t, 33.33, got.BillingPercentage)
	assert.Equal(t, 33.33, got.CollectionPercentage)
	assert.Equal(t, 1, got.RecordCount)

	// zero denominator guarded
	got = e.BillingProgress(records, "task-1", decimal.Zero)
	assert.Equal(t, 0.0, got.BillingPercentage)
}

func TestPercentage_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		part, whole string
		want        float64
	}{
		{"1", "3", 33.33},
		{"2", "3", 66.67},
		{"1", "8", 12.5},
		{"0.0005", "1", 0.05},
		{"0.00005", "1", 0.01},
		{"-0.00005", "1", -0.01},
		{"-1", "8", -12.5},
		{"-0.00125", "0.1", -1.25},
		{"1.00", "20000.01", 0},
		{"49999.99996", "1000000000", 0},
		{"1.00", "20000", 0.01},
		{"-1.00", "20000.01", 0},
		{"5", "0", 0},
		{"5", "-1", 0},
	}
	for _, tt := range tests {
		got := percentage(decimal.RequireFromString(tt.part), decimal.RequireFromString(tt.whole))
		assert.Equal(t, tt.want, got, "%s/%s", tt.part, tt.whole)
	}
}

func TestPaymentProgress(t *testing.T) {
	e := NewEngine(WithClock(clock))
	records := []*entity.BillingRecord{
		rec(entity.RecordTypePayable, workflow.StatusInvoiced, 60000, nil),
		rec(entity.RecordTypePayable, workflow.StatusPaid, 40000, amt(40000)),
		rec(entity.RecordTypePayable, workflow.StatusSubmitted, 10000, nil),
	}

	got := e.PaymentProgress(records, "task-1", d(200000))
	assertDec(t, 100000, got.ApprovedAmount)
	assertDec(t, 40000, got.PaidAmount)
	assert.Equal(t, 50.0, got.ApprovalPercentage)
	assert.Equal(t, 40.0, got.PaymentPercentage)
	assert.Equal(t, 2, got.RecordCount)
}

func mixedRecords() []*entity.BillingRecord {
	return []*entity.BillingRecord{
		rec(entity.RecordTypeReceivable, workflow.StatusPaid, 100000, amt(100000)),
		rec(entity.RecordTypeReceivable, workflow.StatusApproved, 50000, nil),
		rec(entity.RecordTypePayable, workflow.StatusApproved, 60000, nil),
		rec(entity.RecordTypePayable, workflow.StatusPaid, 30000, amt(30000)),
	}
}

func TestFinancialSummary_Mixed(t *testing.T) {
	e := NewEngine(WithClock(clock))

	got := e.FinancialSummary(mixedRecords(), "proj-1")
	assertDec(t, 150000, got.Receivables.Total)
	assertDec(t, 100000, got.Receivables.Collected)
	assertDec(t, 50000, got.Receivables.Pending)
	assert.Equal(t, 66.67, got.Receivables.CollectionRate)
	assertDec(t, 90000, got.Payables.Total)
	assertDec(t, 30000, got.Payables.Paid)
	assertDec(t, 60000, got.Payables.Pending)
	assert.Equal(t, 33.33, got.Payables.PaymentRate)
	assertDec(t, 70000, got.GrossProfit)
	assert.Equal(t, 70.0, got.GrossProfitMargin)
	assert.Equal(t, now, got.GeneratedAt)
}

func TestFinancialSummary_EmptyDegradesToZero(t *testing.T) {
	e := NewEngine(WithClock(clock))

	got := e.FinancialSummary(nil, "proj-empty")
	assert.True(t, got.GrossProfit.IsZero())
	assert.Equal(t, 0.0, got.GrossProfitMargin)
	assert.Equal(t, 0.0, got.Receivables.CollectionRate)
	assert.Equal(t, 0.0, got.Payables.PaymentRate)
	assert.Equal(t, 0, got.Overdue.Receivables.Count)
}

func TestFinancialSummary_IdempotentAndCached(t *testing.T) {
	e := NewEngine(WithClock(clock))
	records := mixedRecords()

	_, ok := e.GetCachedSummary("proj-1")
	assert.False(t, ok)
	assert.Nil(t, e.GetLastUpdated())

	first := e.FinancialSummary(records, "proj-1")
	second := e.FinancialSummary(records, "proj-1")
	assert.Equal(t, first, second)

	cached, ok := e.GetCachedSummary("proj-1")
	require.True(t, ok)
	assert.Equal(t, second, cached)
	require.NotNil(t, e.GetLastUpdated())
	assert.Equal(t, now, *e.GetLastUpdated())

	// the caller's copy does not alias the cache
	first.ProjectID = "mutated"
	cached, _ = e.GetCachedSummary("proj-1")
	assert.Equal(t, "proj-1", cached.ProjectID)
}

func TestBillingProgress_Idempotent(t *testing.T) {
	e := NewEngine(WithClock(clock))
	records := mixedRecords()

	assert.Equal(t, e.BillingProgress(records, "task-1", d(300000)), e.BillingProgress(records, "task-1", d(300000)))
}

func TestOverdueSummary(t *testing.T) {
	e := NewEngine(WithClock(clock))

	pastDue := func(r *entity.BillingRecord) *entity.BillingRecord {
		r.DueDate = now.AddDate(0, 0, -1)
		return r
	}
	records := []*entity.BillingRecord{
		pastDue(rec(entity.RecordTypeReceivable, workflow.StatusInvoiced, 1000, nil)),
		pastDue(rec(entity.RecordTypeReceivable, workflow.StatusPartialPaid, 2000, amt(500))),
		pastDue(rec(entity.RecordTypeReceivable, workflow.StatusPaid, 3000, amt(3000))),
		pastDue(rec(entity.RecordTypePayable, workflow.StatusApproved, 4000, nil)),
		pastDue(rec(entity.RecordTypePayable, workflow.StatusCancelled, 5000, nil)),
		rec(entity.RecordTypePayable, workflow.StatusApproved, 6000, nil),
	}

	got := e.OverdueSummary(records, "proj-1")
	assert.Equal(t, 2, got.Receivables.Count)
	assertDec(t, 3000, got.Receivables.Amount)
	assertDec(t, 2500, got.Receivables.Outstanding)
	assert.Equal(t, 1, got.Payables.Count)
	assertDec(t, 4000, got.Payables.Amount)
	assert.Equal(t, now, got.AsOf)

	// independent of the cache
	_, ok := e.GetCachedSummary("proj-1")
	assert.False(t, ok)
}

func TestFinancialSummary_ThisMonth(t *testing.T) {
	e := NewEngine(WithClock(clock))

	thisMonth := now.AddDate(0, 0, -3)
	lastMonth := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)

	billedNow := rec(entity.RecordTypeReceivable, workflow.StatusApproved, 1000, nil)
	billedNow.CreatedAt = thisMonth
	billedBefore := rec(entity.RecordTypeReceivable, workflow.StatusApproved, 2000, nil)
	billedBefore.CreatedAt = lastMonth
	collected := rec(entity.RecordTypeReceivable, workflow.StatusPaid, 3000, amt(3000))
	collected.PaidDate = &thisMonth
	paidBefore := rec(entity.RecordTypePayable, workflow.StatusPaid, 4000, amt(4000))
	paidBefore.PaidDate = &lastMonth
	approvedPayable := rec(entity.RecordTypePayable, workflow.StatusApproved, 500, nil)
	approvedPayable.CreatedAt = thisMonth

	got := e.FinancialSummary([]*entity.BillingRecord{billedNow, billedBefore, collected, paidBefore, approvedPayable}, "proj-1")
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.ThisMonth.PeriodStart)
	assertDec(t, 1000, got.ThisMonth.ReceivablesBilled)
	assertDec(t, 3000, got.ThisMonth.ReceivablesCollected)
	assertDec(t, 500, got.ThisMonth.PayablesApproved)
	assertDec(t, 0, got.ThisMonth.PayablesPaid)
}

func TestContractorSummary_OnlyPaidCounts(t *testing.T) {
	e := NewEngine(WithClock(clock))

	missingAmount := rec(entity.RecordTypePayable, workflow.StatusPaid, 700, nil)
	otherContractor := rec(entity.RecordTypePayable, workflow.StatusPaid, 9000, amt(9000))
	otherContractor.PayingParty = &entity.Party{ID: "contractor-2", Name: "Other"}
	records := []*entity.BillingRecord{
		rec(entity.RecordTypePayable, workflow.StatusPaid, 1000, amt(1000)),
		rec(entity.RecordTypePayable, workflow.StatusPartialPaid, 2000, amt(1500)),
		rec(entity.RecordTypePayable, workflow.StatusApproved, 3000, nil),
		missingAmount,
		otherContractor,
		rec(entity.RecordTypeReceivable, workflow.StatusPaid, 5000, amt(5000)),
	}

	got := e.ContractorSummary(records, "contractor-1")
	assert.Equal(t, "Builder Ltd", got.ContractorName)
	assert.Equal(t, 4, got.RecordCount)
	assertDec(t, 6700, got.TotalPayable)
	// partial_paid contributes nothing; paid without an amount falls back to total
	assertDec(t, 1700, got.Paid)
	assertDec(t, 5000, got.Pending)

	none := e.ContractorSummary(records, "nobody")
	assert.Equal(t, "", none.ContractorName)
	assertDec(t, 0, none.TotalPayable)
}

func TestCache_InvalidatedByEvents(t *testing.T) {
	bus := dispatcher.NewDispatcher()
	defer bus.Close()

	e := NewSubscribedEngine(bus, WithClock(clock))
	ctx := context.Background()

	for _, typ := range event.SummaryInvalidating {
		t.Run(string(typ), func(t *testing.T) {
			e.FinancialSummary(mixedRecords(), "proj-1")
			e.FinancialSummary(mixedRecords(), "proj-2")

			require.NoError(t, bus.Dispatch(ctx, event.NewEvent(typ, "proj-1", "r1", event.Actor{}, nil)))

			_, ok := e.GetCachedSummary("proj-1")
			assert.False(t, ok)
			_, ok = e.GetCachedSummary("proj-2")
			assert.True(t, ok)
		})
	}
}

func TestCache_IgnoresOtherEvents(t *testing.T) {
	bus := dispatcher.NewDispatcher()
	defer bus.Close()

	e := NewSubscribedEngine(bus, WithClock(clock))
	e.FinancialSummary(mixedRecords(), "proj-1")

	for _, typ := range []event.Type{event.TypeRecordSubmitted, event.TypeRecordRejected, event.TypePaymentSubmitted, event.TypePaymentRejected} {
		require.NoError(t, bus.Dispatch(context.Background(), event.NewEvent(typ, "proj-1", "r1", event.Actor{}, nil)))
	}

	_, ok := e.GetCachedSummary("proj-1")
	assert.True(t, ok)
	assert.Len(t, bus.ListHandlers(event.TypeRecordApproved), 1)
}

func TestCache_Clear(t *testing.T) {
	e := NewEngine(WithClock(clock))
	e.FinancialSummary(mixedRecords(), "proj-1")
	e.FinancialSummary(mixedRecords(), "proj-2")

	e.ClearCache()

	_, ok := e.GetCachedSummary("proj-1")
	assert.False(t, ok)
	_, ok = e.GetCachedSummary("proj-2")
	assert.False(t, ok)
	assert.NotNil(t, e.GetLastUpdated())
}

func TestHandleEvent_Rejects(t *testing.T) {
	e := NewEngine()
	assert.Error(t, e.HandleEvent(context.Background(), nil))
	assert.Error(t, e.HandleEvent(context.Background(), event.NewEvent(event.TypeRecordApproved, "", "r1", event.Actor{}, nil)))
}

func TestSeparateEnginesOwnSeparateCaches(t *testing.T) {
	a := NewEngine(WithClock(clock))
	b := NewEngine(WithClock(clock))

	a.FinancialSummary(mixedRecords(), "proj-1")

	_, ok := b.GetCachedSummary("proj-1")
	assert.False(t, ok)
}

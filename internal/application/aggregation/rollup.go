package aggregation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// basisPoints scales a ratio to hundredths of a percent
var basisPoints = decimal.NewFromInt(10000)

// totals is the shared approved/paid accumulation of one record partition
type totals struct {
	approved decimal.Decimal
	paid     decimal.Decimal
	count    int
}

func (t *totals) add(r *entity.BillingRecord) {
	if r.Status.IsApprovedOrFurther() {
		t.approved = t.approved.Add(r.Total)
		t.count++
	}
	if r.Status.IsCollected() {
		t.paid = t.paid.Add(r.PaidOrZero())
	}
}

func taskTotals(records []*entity.BillingRecord, recordType entity.RecordType, taskID string) totals {
	var t totals
	for _, r := range records {
		if r == nil || r.RecordType != recordType || !r.HasTask(taskID) {
			continue
		}
		t.add(r)
	}
	return t
}

func partitionTotals(records []*entity.BillingRecord, recordType entity.RecordType) totals {
	var t totals
	for _, r := range records {
		if r == nil || r.RecordType != recordType {
			continue
		}
		t.add(r)
	}
	return t
}

// percentage returns part/whole*100 rounded half away from zero to 2 places, or 0 when whole <= 0.
// Rounding is applied once, to the exact quotient.
func percentage(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	q, r := part.Mul(basisPoints).QuoRem(whole, 0)
	if r.Abs().Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(whole) {
		q = q.Add(decimal.NewFromInt(int64(part.Sign())))
	}
	return q.Shift(-2).InexactFloat64()
}

// isOverdue is true for unsettled, uncancelled records past their due date
func isOverdue(r *entity.BillingRecord, now time.Time) bool {
	if r.Status == workflow.StatusPaid || r.Status == workflow.StatusCancelled {
		return false
	}
	return !r.DueDate.IsZero() && r.DueDate.Before(now)
}

func overdue(records []*entity.BillingRecord, projectID string, now time.Time) entity.OverdueSummary {
	out := entity.OverdueSummary{ProjectID: projectID, AsOf: now}
	for _, r := range records {
		if r == nil || !isOverdue(r, now) {
			continue
		}

		bucket := &out.Payables
		if r.RecordType == entity.RecordTypeReceivable {
			bucket = &out.Receivables
		}
		bucket.Count++
		bucket.Amount = bucket.Amount.Add(r.Total)
		bucket.Outstanding = bucket.Outstanding.Add(r.Total.Sub(r.PaidOrZero()))
	}
	return out
}

func monthToDate(records []*entity.BillingRecord, now time.Time) entity.MonthlySummary {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	inPeriod := func(t time.Time) bool {
		return !t.Before(start) && t.Before(now)
	}

	out := entity.MonthlySummary{PeriodStart: start}
	for _, r := range records {
		if r == nil {
			continue
		}

		billed := r.Status.IsApprovedOrFurther() && inPeriod(r.CreatedAt)
		collected := r.Status.IsCollected() && r.PaidDate != nil && inPeriod(*r.PaidDate)

		switch r.RecordType {
		case entity.RecordTypeReceivable:
			if billed {
				out.ReceivablesBilled = out.ReceivablesBilled.Add(r.Total)
			}
			if collected {
				out.ReceivablesCollected = out.ReceivablesCollected.Add(r.PaidOrZero())
			}
		case entity.RecordTypePayable:
			if billed {
				out.PayablesApproved = out.PayablesApproved.Add(r.Total)
			}
			if collected {
				out.PayablesPaid = out.PayablesPaid.Add(r.PaidOrZero())
			}
		}
	}
	return out
}

// contractorTotals counts only fully paid records as paid, falling back to total when
// paidAmount is missing. partial_paid records stay entirely pending here.
func contractorTotals(records []*entity.BillingRecord, contractorID string) entity.ContractorSummary {
	out := entity.ContractorSummary{ContractorID: contractorID}
	for _, r := range records {
		if r == nil || r.RecordType != entity.RecordTypePayable || r.PayingParty == nil || r.PayingParty.ID != contractorID {
			continue
		}

		if out.RecordCount == 0 {
			out.ContractorName = r.PayingParty.Name
		}
		out.RecordCount++
		out.TotalPayable = out.TotalPayable.Add(r.Total)

		if r.Status == workflow.StatusPaid {
			paid := r.Total
			if r.PaidAmount != nil {
				paid = *r.PaidAmount
			}
			out.Paid = out.Paid.Add(paid)
		}
	}
	out.Pending = out.TotalPayable.Sub(out.Paid)
	return out
}

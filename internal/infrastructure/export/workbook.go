// Package export renders financial summaries and record listings as xlsx workbooks.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/project-billing/internal/domain/entity"
)

const (
	// SummarySheet holds the project rollup as label/value rows
	SummarySheet = "Summary"
	// RecordsSheet lists one row per billing record
	RecordsSheet = "Records"

	dateLayout = "2006-01-02"
)

var recordHeaders = []string{
	"Record Number",
	"Type",
	"Status",
	"Contract",
	"Billing Party",
	"Paying Party",
	"Total",
	"Paid",
	"Due Date",
	"Paid Date",
}

// Workbook builds the summary and records sheets and returns the xlsx bytes
func Workbook(summary *entity.FinancialSummary, records []*entity.BillingRecord) ([]byte, error) {
	if summary == nil {
		return nil, fmt.Errorf("summary is required")
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeSummary(file, summary); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	if _, err := file.NewSheet(RecordsSheet); err != nil {
		return nil, fmt.Errorf("failed to create records sheet: %w", err)
	}
	if err := writeRecords(file, records); err != nil {
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(file *excelize.File, s *entity.FinancialSummary) error {
	rows := [][]interface{}{
		{"Project", s.ProjectID},
		{"Generated At", s.GeneratedAt.Format(time.RFC3339)},
		{},
		{"Receivables Total", money(s.Receivables.Total)},
		{"Receivables Collected", money(s.Receivables.Collected)},
		{"Receivables Pending", money(s.Receivables.Pending)},
		{"Collection Rate (%)", s.Receivables.CollectionRate},
		{},
		{"Payables Total", money(s.Payables.Total)},
		{"Payables Paid", money(s.Payables.Paid)},
		{"Payables Pending", money(s.Payables.Pending)},
		{"Payment Rate (%)", s.Payables.PaymentRate},
		{},
		{"Gross Profit", money(s.GrossProfit)},
		{"Gross Profit Margin (%)", s.GrossProfitMargin},
		{},
		{"Overdue Receivables", s.Overdue.Receivables.Count},
		{"Overdue Receivables Outstanding", money(s.Overdue.Receivables.Outstanding)},
		{"Overdue Payables", s.Overdue.Payables.Count},
		{"Overdue Payables Outstanding", money(s.Overdue.Payables.Outstanding)},
		{},
		{"Month Starting", s.ThisMonth.PeriodStart.Format(dateLayout)},
		{"Receivables Billed This Month", money(s.ThisMonth.ReceivablesBilled)},
		{"Receivables Collected This Month", money(s.ThisMonth.ReceivablesCollected)},
		{"Payables Approved This Month", money(s.ThisMonth.PayablesApproved)},
		{"Payables Paid This Month", money(s.ThisMonth.PayablesPaid)},
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}

	_ = file.SetColWidth(SummarySheet, "A", "A", 36)
	_ = file.SetColWidth(SummarySheet, "B", "B", 24)
	return nil
}

func writeRecords(file *excelize.File, records []*entity.BillingRecord) error {
	header := make([]interface{}, len(recordHeaders))
	for i, h := range recordHeaders {
		header[i] = h
	}
	if err := file.SetSheetRow(RecordsSheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, r := range records {
		if r == nil {
			continue
		}

		values := []interface{}{
			r.RecordNumber,
			r.RecordType.String(),
			r.Status.String(),
			r.ContractID,
			partyName(r.BillingParty),
			partyName(r.PayingParty),
			money(r.Total),
			money(r.PaidOrZero()),
			formatDate(&r.DueDate),
			formatDate(r.PaidDate),
		}

		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(RecordsSheet, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		row++
	}

	_ = file.SetColWidth(RecordsSheet, "A", "A", 22)
	_ = file.SetColWidth(RecordsSheet, "B", "D", 14)
	_ = file.SetColWidth(RecordsSheet, "E", "F", 28)
	_ = file.SetColWidth(RecordsSheet, "G", "J", 14)
	return nil
}

// money returns a float for spreadsheet arithmetic; the record store keeps the exact value
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func partyName(p *entity.Party) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Package sheets defines the outbound port for the bookkeeping
// spreadsheet export.
package sheets

import "context"

// PaymentRow is one exported payment line.
type PaymentRow struct {
	PaymentID      int64
	ObligationName string
	Category       string
	PeriodLabel    string
	AmountCents    int64
	PaymentDate    string
	PaymentMethod  string
}

// SummaryRow is one exported monthly reconciliation summary.
type SummaryRow struct {
	Year                 int
	Month                int
	TotalIncomeCents     int64
	GeneralExpensesCents int64
	FixedPaidCents       int64
	NetBalanceCents      int64
	DuplicateCount       int
}

// ReportWriter appends rows to the bookkeeping spreadsheet.
type ReportWriter interface {
	AppendPayment(ctx context.Context, row PaymentRow) (rowRef string, err error)
	AppendSummary(ctx context.Context, row SummaryRow) error
}

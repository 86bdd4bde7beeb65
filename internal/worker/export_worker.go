// Package worker exports registered payments and monthly summaries to
// the bookkeeping spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/reconcile"
	"gastos/internal/sheets"
	"gastos/internal/storage"
)

type ExportWorker struct {
	store     *storage.SQLiteRepository
	writer    sheets.ReportWriter
	batchSize int
	reconcile reconcile.Options
}

func NewExportWorker(store *storage.SQLiteRepository, writer sheets.ReportWriter, batchSize int, opts reconcile.Options) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		reconcile: opts,
	}
}

// HandlePaymentEvent processes one payment event from the queue.
// Deletions need no spreadsheet action: the export sheet is an
// append-only journal and the row stays as history.
func (w *ExportWorker) HandlePaymentEvent(ctx context.Context, event *amqp.PaymentEvent) error {
	if event.Kind != amqp.KindPaymentRegistered {
		slog.InfoContext(ctx, "Skipping payment event", "kind", event.Kind, "payment_id", event.PaymentID)
		return nil
	}
	return w.exportPayment(ctx, event.PaymentID)
}

// ProcessPendingExports exports payments the broker path missed.
// Rows are independent, so the batch fans out with a bounded errgroup.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, pe := range pending {
		g.Go(func() error {
			if err := w.exportPayment(gctx, pe.PaymentID); err != nil {
				slog.ErrorContext(gctx, "Failed to export payment",
					"payment_id", pe.PaymentID, "error", err)
			}
			return nil // one bad row must not stop the batch
		})
	}
	return g.Wait()
}

// ExportMonthlySummary builds the reconciliation dashboard for a
// month and appends its headline figures to the summary sheet.
func (w *ExportWorker) ExportMonthlySummary(ctx context.Context, year, month int) error {
	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month, core.DaysIn(year, month))

	txs, err := w.store.ListTransactions(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	d := reconcile.BuildDashboard(txs, reconcile.Filter{From: from, To: to}, w.reconcile)

	err = w.writer.AppendSummary(ctx, sheets.SummaryRow{
		Year:                 year,
		Month:                month,
		TotalIncomeCents:     d.Summary.TotalIncome.Cents,
		GeneralExpensesCents: d.Summary.TotalGeneralExpenses.Cents,
		FixedPaidCents:       d.Summary.TotalFixedPaid.Cents,
		NetBalanceCents:      d.Summary.NetBalance.Cents,
		DuplicateCount:       d.Alerts.DuplicateCount,
	})
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}

	slog.InfoContext(ctx, "Monthly summary exported",
		"year", year,
		"month", month,
		"transactions", len(txs),
		"duplicates", d.Alerts.DuplicateCount)
	return nil
}

func (w *ExportWorker) exportPayment(ctx context.Context, paymentID int64) error {
	p, err := w.store.Payment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	ob, err := w.store.Obligation(ctx, p.ObligationID)
	if err != nil {
		return fmt.Errorf("load obligation: %w", err)
	}

	ref, err := w.writer.AppendPayment(ctx, sheets.PaymentRow{
		PaymentID:      p.ID,
		ObligationName: ob.Name,
		Category:       string(ob.Category),
		PeriodLabel:    p.PeriodStart.String() + " / " + p.PeriodEnd.String(),
		AmountCents:    p.Amount.Cents,
		PaymentDate:    p.PaymentDate.String(),
		PaymentMethod:  p.PaymentMethod,
	})
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, paymentID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "payment_id", paymentID, "error", markErr)
		}
		return fmt.Errorf("append payment row: %w", err)
	}

	if err := w.store.MarkExported(ctx, paymentID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark payment exported", "payment_id", paymentID, "error", err)
		// The append succeeded; the catch-up pass may duplicate the row.
	}

	slog.InfoContext(ctx, "Payment exported",
		"payment_id", paymentID,
		"sheets_ref", ref,
		"obligation", ob.Name)
	return nil
}

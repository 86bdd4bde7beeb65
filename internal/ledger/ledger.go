// Package ledger records payments against obligation billing periods
// and derives the settlement status of each period.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gastos/internal/core"
)

// Store is the persistence port the ledger writes through.
type Store interface {
	InsertPayment(ctx context.Context, p core.Payment) (int64, error)
	Payment(ctx context.Context, id int64) (core.Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	PaymentsForObligation(ctx context.Context, obligationID int64) ([]core.Payment, error)
	InvoiceSettled(ctx context.Context, obligationID int64, start, end core.Date) (bool, error)
	InsertInvoiceSettlement(ctx context.Context, obligationID int64, start, end core.Date, transactionID int64) error
}

const lockStripes = 64

// Ledger applies and deletes payments. Writes for the same obligation
// are serialized through striped locks: paid-to-date and settlement
// are read-then-write, so concurrent payments against one period
// would race. Reads take no lock.
type Ledger struct {
	store Store
	locks [lockStripes]sync.Mutex
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) lockFor(obligationID int64) *sync.Mutex {
	return &l.locks[uint64(obligationID)%lockStripes]
}

// PaidAmount sums the payments whose period exactly matches the
// window. Payments recorded against a different window do not count.
func (l *Ledger) PaidAmount(ctx context.Context, obligationID int64, w core.PeriodWindow) (core.Money, error) {
	payments, err := l.store.PaymentsForObligation(ctx, obligationID)
	if err != nil {
		return core.Money{}, fmt.Errorf("load payments: %w", err)
	}
	var total int64
	for _, p := range payments {
		if w.Matches(p.PeriodStart, p.PeriodEnd) {
			total += p.Amount.Cents
		}
	}
	return core.Money{Cents: total}, nil
}

// StatusFor derives the settlement status of one window. An invoice
// settlement overrides whatever the payment accumulation says.
func (l *Ledger) StatusFor(ctx context.Context, ob core.Obligation, w core.PeriodWindow) (core.PaymentStatus, error) {
	settled, err := l.store.InvoiceSettled(ctx, ob.ID, w.Start, w.End)
	if err != nil {
		return "", fmt.Errorf("check invoice settlement: %w", err)
	}
	if settled {
		return core.StatusPaidViaInvoice, nil
	}
	paid, err := l.PaidAmount(ctx, ob.ID, w)
	if err != nil {
		return "", err
	}
	switch {
	case paid.Cents == 0:
		return core.StatusUnpaid, nil
	case paid.Cents < ob.Amount.Cents:
		return core.StatusPartial, nil
	default:
		return core.StatusPaid, nil
	}
}

// Apply registers a payment and returns the resulting status of the
// payment's period. When the payment brings the paid amount to the
// obligation's per-period total the period is settled; earlier periods
// are never touched.
func (l *Ledger) Apply(ctx context.Context, ob core.Obligation, p core.Payment) (core.Payment, core.PaymentStatus, error) {
	if p.Amount.Cents <= 0 {
		return core.Payment{}, "", core.ErrInvalidAmount
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, "", err
	}

	mu := l.lockFor(ob.ID)
	mu.Lock()
	defer mu.Unlock()

	id, err := l.store.InsertPayment(ctx, p)
	if err != nil {
		return core.Payment{}, "", fmt.Errorf("insert payment: %w", err)
	}
	p.ID = id

	w := core.PeriodWindow{Start: p.PeriodStart, End: p.PeriodEnd}
	status, err := l.StatusFor(ctx, ob, w)
	if err != nil {
		return core.Payment{}, "", err
	}

	slog.InfoContext(ctx, "Payment applied",
		"payment_id", id,
		"obligation_id", ob.ID,
		"amount_cents", p.Amount.Cents,
		"period_start", p.PeriodStart.String(),
		"status", string(status))

	return p, status, nil
}

// Delete removes a payment and recomputes its period's status. When
// the remaining paid amount drops below the per-period total the
// status flips back to partial or unpaid, which also reverts the
// derived next due date to that period. Unknown ids fail with
// core.ErrNotFound.
func (l *Ledger) Delete(ctx context.Context, ob core.Obligation, paymentID int64) (core.PaymentStatus, error) {
	mu := l.lockFor(ob.ID)
	mu.Lock()
	defer mu.Unlock()

	p, err := l.store.Payment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if p.ObligationID != ob.ID {
		return "", core.ErrNotFound
	}
	if err := l.store.DeletePayment(ctx, paymentID); err != nil {
		return "", fmt.Errorf("delete payment: %w", err)
	}

	w := core.PeriodWindow{Start: p.PeriodStart, End: p.PeriodEnd}
	status, err := l.StatusFor(ctx, ob, w)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Payment deleted",
		"payment_id", paymentID,
		"obligation_id", ob.ID,
		"period_start", p.PeriodStart.String(),
		"status", string(status))

	return status, nil
}

// SettleByInvoice marks a period as settled through a linked external
// transaction, the third settlement path alongside full and partial
// payment accumulation.
func (l *Ledger) SettleByInvoice(ctx context.Context, ob core.Obligation, w core.PeriodWindow, transactionID int64) error {
	mu := l.lockFor(ob.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := l.store.InsertInvoiceSettlement(ctx, ob.ID, w.Start, w.End, transactionID); err != nil {
		return fmt.Errorf("settle by invoice: %w", err)
	}
	slog.InfoContext(ctx, "Period settled via invoice",
		"obligation_id", ob.ID,
		"period_start", w.Start.String(),
		"transaction_id", transactionID)
	return nil
}

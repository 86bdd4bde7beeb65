// Package services orchestrates storage, ledger and event publication
// for the HTTP layer.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/amqp"
	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/reconcile"
	"gastos/internal/registry"
	"gastos/internal/storage"
)

// ObligationService wires obligation and payment writes through the
// ledger, mirrors payments into the transaction list, and publishes
// export events. The AMQP client is optional; everything works
// without a broker, the export just falls back to the worker's
// periodic catch-up.
type ObligationService struct {
	store      *storage.SQLiteRepository
	ledger     *ledger.Ledger
	registry   *registry.Registry
	amqpClient *amqp.Client
	reconcile  reconcile.Options
}

func NewObligationService(store *storage.SQLiteRepository, lg *ledger.Ledger, reg *registry.Registry, amqpClient *amqp.Client, opts reconcile.Options) *ObligationService {
	return &ObligationService{
		store:      store,
		ledger:     lg,
		registry:   reg,
		amqpClient: amqpClient,
		reconcile:  opts,
	}
}

// CreateObligation validates and stores a new recurring obligation.
func (s *ObligationService) CreateObligation(ctx context.Context, ob core.Obligation) (core.Obligation, error) {
	ob.Active = true
	if err := ob.Validate(); err != nil {
		return core.Obligation{}, err
	}
	id, err := s.store.CreateObligation(ctx, ob)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("create obligation: %w", err)
	}
	ob.ID = id
	return ob, nil
}

// PaymentResult reports the outcome of a payment write.
type PaymentResult struct {
	Payment core.Payment       `json:"payment,omitzero"`
	Status  core.PaymentStatus `json:"status"`
	NextDue core.Date          `json:"nextDueDate"`
}

// RegisterPayment applies a payment through the ledger, records the
// matching ledger-derived expense transaction, and publishes an export
// event.
func (s *ObligationService) RegisterPayment(ctx context.Context, p core.Payment) (PaymentResult, error) {
	ob, err := s.store.Obligation(ctx, p.ObligationID)
	if err != nil {
		return PaymentResult{}, err
	}

	applied, status, err := s.ledger.Apply(ctx, ob, p)
	if err != nil {
		return PaymentResult{}, err
	}

	// Mirror the payment into the transaction list so the reconciler
	// sees it as a fixed expense.
	_, err = s.store.InsertTransaction(ctx, core.Transaction{
		Type:          core.Expense,
		Category:      string(ob.Category),
		Amount:        applied.Amount,
		Date:          applied.PaymentDate,
		PaymentMethod: applied.PaymentMethod,
		Description:   ob.Name + " " + applied.PeriodStart.String(),
		ObligationID:  ob.ID,
		PaymentID:     applied.ID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to mirror payment as transaction",
			"payment_id", applied.ID, "error", err)
		// The payment itself is recorded; reconciliation will surface
		// the gap as a missing fixed expense.
	}

	s.publish(ctx, amqp.KindPaymentRegistered, applied.ID, ob.ID)

	nextDue, err := s.registry.NextDueDate(ctx, ob, applied.PaymentDate)
	if err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Payment: applied, Status: status, NextDue: nextDue}, nil
}

// DeletePayment removes a payment, reverses its derived transaction,
// and reports the period's recomputed status. Unknown ids fail with
// core.ErrNotFound.
func (s *ObligationService) DeletePayment(ctx context.Context, paymentID int64) (PaymentResult, error) {
	p, err := s.store.Payment(ctx, paymentID)
	if err != nil {
		return PaymentResult{}, err
	}
	ob, err := s.store.Obligation(ctx, p.ObligationID)
	if err != nil {
		return PaymentResult{}, err
	}

	status, err := s.ledger.Delete(ctx, ob, paymentID)
	if err != nil {
		return PaymentResult{}, err
	}

	if err := s.store.DeleteTransactionsForPayment(ctx, paymentID); err != nil {
		slog.ErrorContext(ctx, "Failed to reverse payment transaction",
			"payment_id", paymentID, "error", err)
	}

	s.publish(ctx, amqp.KindPaymentDeleted, paymentID, ob.ID)

	nextDue, err := s.registry.NextDueDate(ctx, ob, p.PaymentDate)
	if err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Status: status, NextDue: nextDue}, nil
}

// SettleByInvoice marks a period as covered by a linked external
// transaction.
func (s *ObligationService) SettleByInvoice(ctx context.Context, obligationID int64, start, end core.Date, transactionID int64) error {
	ob, err := s.store.Obligation(ctx, obligationID)
	if err != nil {
		return err
	}
	w := core.PeriodWindow{Start: start, End: end}
	return s.ledger.SettleByInvoice(ctx, ob, w, transactionID)
}

// Dashboard loads the transaction snapshot for the filter range and
// builds the reconciliation report.
func (s *ObligationService) Dashboard(ctx context.Context, f reconcile.Filter) (reconcile.Dashboard, error) {
	txs, err := s.store.ListTransactions(ctx, f.From, f.To)
	if err != nil {
		return reconcile.Dashboard{}, fmt.Errorf("load transactions: %w", err)
	}
	return reconcile.BuildDashboard(txs, f, s.reconcile), nil
}

// Pending lists obligations with an open period as of the given date.
func (s *ObligationService) Pending(ctx context.Context, asOf core.Date, includeAll bool) ([]registry.PendingObligation, error) {
	return s.registry.ListPending(ctx, asOf, includeAll)
}

// Paid lists settled billing periods whose start falls inside the
// reporting window.
func (s *ObligationService) Paid(ctx context.Context, window core.PeriodWindow) ([]registry.SettledPeriod, error) {
	return s.registry.ListPaid(ctx, window)
}

// PendingPeriods lists the not-yet-settled windows of one obligation.
func (s *ObligationService) PendingPeriods(ctx context.Context, obligationID int64, asOf core.Date) ([]core.PeriodWindow, error) {
	return s.registry.PendingPeriods(ctx, obligationID, asOf)
}

func (s *ObligationService) publish(ctx context.Context, kind string, paymentID, obligationID int64) {
	if s.amqpClient == nil {
		return
	}
	event := amqp.NewPaymentEvent(kind, paymentID, obligationID)
	if err := s.amqpClient.PublishPaymentEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"kind", kind, "payment_id", paymentID, "error", err)
		// Not fatal, the worker's periodic catch-up covers it.
	}
}

// Close releases the service's connections.
func (s *ObligationService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close obligation service: %v", errs)
	}
	return nil
}

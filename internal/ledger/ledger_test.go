package ledger

import (
	"context"
	"errors"
	"testing"

	"gastos/internal/core"
)

func d(year, month, day int) core.Date {
	return core.Date{Year: year, Month: month, Day: day}
}

type settlementKey struct {
	obligationID int64
	start, end   string
}

type memStore struct {
	nextID      int64
	payments    map[int64]core.Payment
	settlements map[settlementKey]int64
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		payments:    make(map[int64]core.Payment),
		settlements: make(map[settlementKey]int64),
	}
}

func (s *memStore) InsertPayment(_ context.Context, p core.Payment) (int64, error) {
	id := s.nextID
	s.nextID++
	p.ID = id
	s.payments[id] = p
	return id, nil
}

func (s *memStore) Payment(_ context.Context, id int64) (core.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, core.ErrNotFound
	}
	return p, nil
}

func (s *memStore) DeletePayment(_ context.Context, id int64) error {
	if _, ok := s.payments[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *memStore) PaymentsForObligation(_ context.Context, obligationID int64) ([]core.Payment, error) {
	var out []core.Payment
	for _, p := range s.payments {
		if p.ObligationID == obligationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) InvoiceSettled(_ context.Context, obligationID int64, start, end core.Date) (bool, error) {
	_, ok := s.settlements[settlementKey{obligationID, start.String(), end.String()}]
	return ok, nil
}

func (s *memStore) InsertInvoiceSettlement(_ context.Context, obligationID int64, start, end core.Date, transactionID int64) error {
	s.settlements[settlementKey{obligationID, start.String(), end.String()}] = transactionID
	return nil
}

func testObligation() core.Obligation {
	return core.Obligation{
		ID:        1,
		Name:      "Office rent",
		Category:  core.Rent,
		Amount:    core.Money{Cents: 1000},
		Frequency: core.Monthly,
		StartDate: d(2025, 1, 1),
		Active:    true,
	}
}

func januaryPayment(cents int64) core.Payment {
	return core.Payment{
		ObligationID: 1,
		PeriodStart:  d(2025, 1, 1),
		PeriodEnd:    d(2025, 1, 31),
		Amount:       core.Money{Cents: cents},
		PaymentDate:  d(2025, 1, 15),
	}
}

func TestApplyStatusTransitions(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	p1, status, err := lg.Apply(ctx, ob, januaryPayment(600))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != core.StatusPartial {
		t.Errorf("after 600 of 1000: status = %s, want partial", status)
	}
	if p1.ID == 0 {
		t.Error("expected assigned payment id")
	}

	_, status, err = lg.Apply(ctx, ob, januaryPayment(400))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != core.StatusPaid {
		t.Errorf("after 600+400 of 1000: status = %s, want paid", status)
	}
}

func TestApplyOverpaymentStillPaid(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())

	_, status, err := lg.Apply(ctx, testObligation(), januaryPayment(1500))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != core.StatusPaid {
		t.Errorf("overpaid period: status = %s, want paid", status)
	}
}

func TestApplyRejectsBadAmounts(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	for _, cents := range []int64{0, -100} {
		if _, _, err := lg.Apply(ctx, ob, januaryPayment(cents)); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("amount %d: error = %v, want ErrInvalidAmount", cents, err)
		}
	}
}

func TestApplyDifferentWindowsIndependent(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	if _, _, err := lg.Apply(ctx, ob, januaryPayment(1000)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	feb := core.Payment{
		ObligationID: 1,
		PeriodStart:  d(2025, 2, 1),
		PeriodEnd:    d(2025, 2, 28),
		Amount:       core.Money{Cents: 300},
		PaymentDate:  d(2025, 2, 10),
	}
	_, status, err := lg.Apply(ctx, ob, feb)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status != core.StatusPartial {
		t.Errorf("february status = %s, want partial", status)
	}

	// January is untouched.
	jan := core.PeriodWindow{Start: d(2025, 1, 1), End: d(2025, 1, 31)}
	janStatus, err := lg.StatusFor(ctx, ob, jan)
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if janStatus != core.StatusPaid {
		t.Errorf("january status = %s, want paid", janStatus)
	}
}

func TestDeleteRevertsStatus(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	p1, _, err := lg.Apply(ctx, ob, januaryPayment(600))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, _, err := lg.Apply(ctx, ob, januaryPayment(400)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	status, err := lg.Delete(ctx, ob, p1.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if status != core.StatusPartial {
		t.Errorf("after deleting 600: status = %s, want partial", status)
	}
}

func TestDeleteLastPaymentUnpaid(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	p, _, err := lg.Apply(ctx, ob, januaryPayment(1000))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	status, err := lg.Delete(ctx, ob, p.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if status != core.StatusUnpaid {
		t.Errorf("after deleting only payment: status = %s, want unpaid", status)
	}
}

func TestDeleteUnknownPayment(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())

	if _, err := lg.Delete(ctx, testObligation(), 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRejectsForeignPayment(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	p, _, err := lg.Apply(ctx, ob, januaryPayment(500))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	other := ob
	other.ID = 2
	if _, err := lg.Delete(ctx, other, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for payment of another obligation", err)
	}
}

func TestSettleByInvoiceOverridesStatus(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()
	w := core.PeriodWindow{Start: d(2025, 1, 1), End: d(2025, 1, 31)}

	// Partial payment first, then an invoice settlement wins.
	if _, _, err := lg.Apply(ctx, ob, januaryPayment(300)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := lg.SettleByInvoice(ctx, ob, w, 42); err != nil {
		t.Fatalf("SettleByInvoice: %v", err)
	}

	status, err := lg.StatusFor(ctx, ob, w)
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if status != core.StatusPaidViaInvoice {
		t.Errorf("status = %s, want paid_via_invoice", status)
	}
}

func TestPaidAmountExactWindowOnly(t *testing.T) {
	ctx := context.Background()
	lg := New(newMemStore())
	ob := testObligation()

	if _, _, err := lg.Apply(ctx, ob, januaryPayment(600)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// A payment against a shifted window must not count for January.
	shifted := januaryPayment(400)
	shifted.PeriodEnd = d(2025, 1, 30)
	if _, _, err := lg.Apply(ctx, ob, shifted); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	jan := core.PeriodWindow{Start: d(2025, 1, 1), End: d(2025, 1, 31)}
	paid, err := lg.PaidAmount(ctx, ob.ID, jan)
	if err != nil {
		t.Fatalf("PaidAmount: %v", err)
	}
	if paid.Cents != 600 {
		t.Errorf("paid = %d, want 600 (exact window matches only)", paid.Cents)
	}
}

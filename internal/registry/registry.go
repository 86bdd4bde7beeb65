// Package registry owns the set of recurring obligations and answers
// the pending/paid queries built on the period calculator and the
// payment ledger. A Registry is constructed per process over storage;
// there is no module-level shared state.
package registry

import (
	"context"
	"fmt"
	"sort"

	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/schedule"
)

// DefaultOverdueCutoffDays is how far in the past an obligation's due
// date may be before it drops out of the default pending view. Stale
// entries stay visible under the "all" filter. Policy constant, not
// derived.
const DefaultOverdueCutoffDays = 30

// Store is the obligation persistence port.
type Store interface {
	Obligation(ctx context.Context, id int64) (core.Obligation, error)
	ListObligations(ctx context.Context, activeOnly bool) ([]core.Obligation, error)
}

type Registry struct {
	store      Store
	ledger     *ledger.Ledger
	cutoffDays int
}

type Option func(*Registry)

// WithOverdueCutoff overrides the stale-obligation cutoff in days.
func WithOverdueCutoff(days int) Option {
	return func(r *Registry) { r.cutoffDays = days }
}

func New(store Store, lg *ledger.Ledger, opts ...Option) *Registry {
	r := &Registry{store: store, ledger: lg, cutoffDays: DefaultOverdueCutoffDays}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PendingObligation is one row of the pending view: an obligation with
// its first open period and derived payment state.
type PendingObligation struct {
	Obligation core.Obligation    `json:"obligation"`
	Period     core.PeriodWindow  `json:"period"`
	Status     core.PaymentStatus `json:"status"`
	Paid       core.Money         `json:"paidAmount"`
	NextDue    core.Date          `json:"nextDueDate"`
}

// SettledPeriod is one settled billing period of an obligation inside
// a reporting window.
type SettledPeriod struct {
	Obligation core.Obligation    `json:"obligation"`
	Period     core.PeriodWindow  `json:"period"`
	Status     core.PaymentStatus `json:"status"`
	Paid       core.Money         `json:"paidAmount"`
}

// NextDueDate derives when the obligation next owes money: the start
// of its first unsettled period, or the start of the period after the
// last generated one when everything is settled.
func (r *Registry) NextDueDate(ctx context.Context, ob core.Obligation, asOf core.Date) (core.Date, error) {
	windows, err := schedule.Periods(ob, asOf)
	if err != nil {
		return core.Date{}, err
	}
	if len(windows) == 0 {
		return ob.StartDate, nil
	}
	for _, w := range windows {
		status, err := r.ledger.StatusFor(ctx, ob, w)
		if err != nil {
			return core.Date{}, err
		}
		if status == core.StatusUnpaid || status == core.StatusPartial {
			return w.Start, nil
		}
	}
	return schedule.Following(windows[len(windows)-1]), nil
}

// PendingPeriods returns the obligation's windows up to asOf that are
// not yet fully settled, oldest first.
func (r *Registry) PendingPeriods(ctx context.Context, obligationID int64, asOf core.Date) ([]core.PeriodWindow, error) {
	ob, err := r.store.Obligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	windows, err := schedule.Periods(ob, asOf)
	if err != nil {
		return nil, err
	}
	var pending []core.PeriodWindow
	for _, w := range windows {
		status, err := r.ledger.StatusFor(ctx, ob, w)
		if err != nil {
			return nil, err
		}
		if status == core.StatusUnpaid || status == core.StatusPartial {
			pending = append(pending, w)
		}
	}
	return pending, nil
}

// ListPending returns active obligations with an open (unpaid or
// partial) period, ordered by next due date. Unless includeAll is set,
// obligations whose due date is more than the cutoff behind asOf are
// presumed stale and filtered out.
func (r *Registry) ListPending(ctx context.Context, asOf core.Date, includeAll bool) ([]PendingObligation, error) {
	obs, err := r.store.ListObligations(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	cutoff := asOf.AddDays(-r.cutoffDays)

	var out []PendingObligation
	for _, ob := range obs {
		windows, err := schedule.Periods(ob, asOf)
		if err != nil {
			return nil, fmt.Errorf("obligation %d: %w", ob.ID, err)
		}
		open, ok, err := r.firstOpen(ctx, ob, windows)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // every generated period settled
		}
		if !includeAll && open.Period.Start.Before(cutoff) {
			continue
		}
		out = append(out, open)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextDue.Before(out[j].NextDue)
	})
	return out, nil
}

func (r *Registry) firstOpen(ctx context.Context, ob core.Obligation, windows []core.PeriodWindow) (PendingObligation, bool, error) {
	for _, w := range windows {
		status, err := r.ledger.StatusFor(ctx, ob, w)
		if err != nil {
			return PendingObligation{}, false, err
		}
		if status != core.StatusUnpaid && status != core.StatusPartial {
			continue
		}
		paid, err := r.ledger.PaidAmount(ctx, ob.ID, w)
		if err != nil {
			return PendingObligation{}, false, err
		}
		return PendingObligation{
			Obligation: ob,
			Period:     w,
			Status:     status,
			Paid:       paid,
			NextDue:    w.Start,
		}, true, nil
	}
	return PendingObligation{}, false, nil
}

// ListPaid returns the settled periods whose start falls inside the
// reporting window. Inactive obligations are included: history is
// retained.
func (r *Registry) ListPaid(ctx context.Context, window core.PeriodWindow) ([]SettledPeriod, error) {
	obs, err := r.store.ListObligations(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	var out []SettledPeriod
	for _, ob := range obs {
		windows, err := schedule.Periods(ob, window.End)
		if err != nil {
			return nil, fmt.Errorf("obligation %d: %w", ob.ID, err)
		}
		for _, w := range windows {
			if w.Start.Before(window.Start) || w.Start.After(window.End) {
				continue
			}
			status, err := r.ledger.StatusFor(ctx, ob, w)
			if err != nil {
				return nil, err
			}
			if status != core.StatusPaid && status != core.StatusPaidViaInvoice {
				continue
			}
			paid, err := r.ledger.PaidAmount(ctx, ob.ID, w)
			if err != nil {
				return nil, err
			}
			out = append(out, SettledPeriod{Obligation: ob, Period: w, Status: status, Paid: paid})
		}
	}
	return out, nil
}

// Package reconcile builds the financial dashboard from a snapshot of
// transactions and flags anomalies: duplicate candidates, expenses
// with missing metadata, and category totals that drifted from their
// items. Pure computation: nothing here mutates obligations or
// payments, and concurrent invocations are safe.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"gastos/internal/core"
)

// DefaultSuspiciousExpenseCents is the amount above which an expense
// without description and vendor gets flagged. Policy constant
// inherited from the back office, not derived.
const DefaultSuspiciousExpenseCents = 100_00

// IntegrityToleranceCents is the rounding slack allowed between a
// category's reported total and the recomputed sum of its items.
const IntegrityToleranceCents = 1

// descriptionKeyLen is how much of the description participates in the
// duplicate key. Matching on the full text was too strict, matching on
// amount+date alone too noisy.
const descriptionKeyLen = 50

// Filter restricts the dashboard to transactions inside a date range.
// Zero bounds are open.
type Filter struct {
	From core.Date
	To   core.Date
}

func (f Filter) contains(d core.Date) bool {
	if !f.From.IsZero() && d.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To) {
		return false
	}
	return true
}

// Options tunes the anomaly heuristics. The zero value uses the
// defaults above.
type Options struct {
	SuspiciousExpenseCents int64
	ToleranceCents         int64
}

func (o Options) withDefaults() Options {
	if o.SuspiciousExpenseCents == 0 {
		o.SuspiciousExpenseCents = DefaultSuspiciousExpenseCents
	}
	if o.ToleranceCents == 0 {
		o.ToleranceCents = IntegrityToleranceCents
	}
	return o
}

// CategoryBreakdown aggregates one category's transactions.
type CategoryBreakdown struct {
	Category string             `json:"category"`
	Total    core.Money         `json:"total"`
	Count    int                `json:"count"`
	Items    []core.Transaction `json:"items"`
}

// MethodBreakdown aggregates one payment method's transactions.
type MethodBreakdown struct {
	Method string     `json:"method"`
	Total  core.Money `json:"total"`
	Count  int        `json:"count"`
}

// Summary carries the headline dashboard figures. Fixed paid covers
// ledger-derived expense entries (linked to an obligation); general
// expenses everything else.
type Summary struct {
	TotalIncome          core.Money `json:"totalIncome"`
	TotalGeneralExpenses core.Money `json:"totalGeneralExpenses"`
	TotalFixedPaid       core.Money `json:"totalFixedPaid"`
	NetBalance           core.Money `json:"netBalance"`
	Efficiency           float64    `json:"efficiency"` // net / income, percent
}

// DuplicateGroup is a set of transactions sharing the composite
// duplicate key. Every member is a suspicious-duplicate candidate.
type DuplicateGroup struct {
	Key          string             `json:"key"`
	Transactions []core.Transaction `json:"transactions"`
}

// IntegrityWarning reports a category whose stored total drifted from
// the sum of its items beyond tolerance. Informational, never fatal.
type IntegrityWarning struct {
	Category string     `json:"category"`
	Reported core.Money `json:"reported"`
	Computed core.Money `json:"computed"`
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("category %q total %s does not match item sum %s", w.Category, w.Reported, w.Computed)
}

// Alerts groups the anomaly output of a dashboard build.
type Alerts struct {
	DuplicateCount      int                `json:"duplicateCount"`
	PotentialDuplicates []DuplicateGroup   `json:"potentialDuplicates"`
	SuspiciousExpenses  []core.Transaction `json:"suspiciousExpenses"`
	IntegrityWarnings   []IntegrityWarning `json:"integrityWarnings"`
}

// Dashboard is the full reconciliation report for a period.
type Dashboard struct {
	Summary         Summary                       `json:"summary"`
	ByCategory      map[string]*CategoryBreakdown `json:"byCategory"`
	ByPaymentMethod map[string]*MethodBreakdown   `json:"byPaymentMethod"`
	Alerts          Alerts                        `json:"alerts"`
}

// BuildDashboard aggregates the transactions that fall inside the
// filter and runs the anomaly checks.
func BuildDashboard(txs []core.Transaction, f Filter, opts Options) Dashboard {
	opts = opts.withDefaults()

	d := Dashboard{
		ByCategory:      make(map[string]*CategoryBreakdown),
		ByPaymentMethod: make(map[string]*MethodBreakdown),
	}
	byKey := make(map[string][]core.Transaction)

	for _, tx := range txs {
		if !f.contains(tx.Date) {
			continue
		}

		cat := tx.Category
		if cat == "" {
			cat = "uncategorized"
		}
		cb, ok := d.ByCategory[cat]
		if !ok {
			cb = &CategoryBreakdown{Category: cat}
			d.ByCategory[cat] = cb
		}
		cb.Total.Cents += tx.Amount.Cents
		cb.Count++
		cb.Items = append(cb.Items, tx)

		method := tx.PaymentMethod
		if method == "" {
			method = "unspecified"
		}
		mb, ok := d.ByPaymentMethod[method]
		if !ok {
			mb = &MethodBreakdown{Method: method}
			d.ByPaymentMethod[method] = mb
		}
		mb.Total.Cents += tx.Amount.Cents
		mb.Count++

		switch tx.Type {
		case core.Income:
			d.Summary.TotalIncome.Cents += tx.Amount.Cents
		case core.Expense:
			if tx.ObligationID != 0 {
				d.Summary.TotalFixedPaid.Cents += tx.Amount.Cents
			} else {
				d.Summary.TotalGeneralExpenses.Cents += tx.Amount.Cents
			}
			if suspiciousExpense(tx, opts.SuspiciousExpenseCents) {
				d.Alerts.SuspiciousExpenses = append(d.Alerts.SuspiciousExpenses, tx)
			}
		}

		key := duplicateKey(tx)
		byKey[key] = append(byKey[key], tx)
	}

	d.Summary.NetBalance.Cents = d.Summary.TotalIncome.Cents -
		d.Summary.TotalGeneralExpenses.Cents - d.Summary.TotalFixedPaid.Cents
	if d.Summary.TotalIncome.Cents != 0 {
		d.Summary.Efficiency = float64(d.Summary.NetBalance.Cents) / float64(d.Summary.TotalIncome.Cents) * 100
	}

	for key, group := range byKey {
		if len(group) < 2 {
			continue
		}
		d.Alerts.PotentialDuplicates = append(d.Alerts.PotentialDuplicates, DuplicateGroup{
			Key:          key,
			Transactions: group,
		})
		d.Alerts.DuplicateCount += len(group)
	}
	sort.Slice(d.Alerts.PotentialDuplicates, func(i, j int) bool {
		return d.Alerts.PotentialDuplicates[i].Key < d.Alerts.PotentialDuplicates[j].Key
	})

	d.Alerts.IntegrityWarnings = VerifyIntegrity(&d, opts.ToleranceCents)
	return d
}

// IsDuplicate reports whether the transaction shares its composite key
// with another transaction in the dashboard.
func (d *Dashboard) IsDuplicate(tx core.Transaction) bool {
	key := duplicateKey(tx)
	for _, group := range d.Alerts.PotentialDuplicates {
		if group.Key == key {
			return true
		}
	}
	return false
}

// duplicateKey builds the composite identity used for duplicate
// candidates: amount, date, type, property address and the leading
// part of the description. Transactions differing in address or
// description are deliberately not matched.
func duplicateKey(tx core.Transaction) string {
	desc := strings.TrimSpace(tx.Description)
	if runes := []rune(desc); len(runes) > descriptionKeyLen {
		desc = string(runes[:descriptionKeyLen])
	}
	return fmt.Sprintf("%d|%s|%s|%s|%s",
		tx.Amount.Cents, tx.Date, tx.Type, strings.TrimSpace(tx.PropertyAddress), desc)
}

// suspiciousExpense flags expenses above the threshold that carry
// neither a description nor a vendor. Independent of duplication.
func suspiciousExpense(tx core.Transaction, thresholdCents int64) bool {
	if tx.Type != core.Expense || tx.Amount.Cents <= thresholdCents {
		return false
	}
	return strings.TrimSpace(tx.Description) == "" && strings.TrimSpace(tx.Vendor) == ""
}

// VerifyIntegrity recomputes every category total from its items and
// reports the ones that differ beyond tolerance. Run automatically by
// BuildDashboard; exported so a caller can re-check a dashboard it
// transported or cached.
func VerifyIntegrity(d *Dashboard, toleranceCents int64) []IntegrityWarning {
	var warnings []IntegrityWarning
	for _, cb := range d.ByCategory {
		var sum int64
		for _, item := range cb.Items {
			sum += item.Amount.Cents
		}
		diff := cb.Total.Cents - sum
		if diff < 0 {
			diff = -diff
		}
		if diff > toleranceCents {
			warnings = append(warnings, IntegrityWarning{
				Category: cb.Category,
				Reported: cb.Total,
				Computed: core.Money{Cents: sum},
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Category < warnings[j].Category
	})
	return warnings
}

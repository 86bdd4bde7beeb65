package core

import (
	"errors"
	"fmt"
	"strings"
)

// Frequency is the billing cadence of a recurring obligation.
type Frequency string

const (
	Weekly     Frequency = "weekly"
	Biweekly   Frequency = "biweekly"
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
	OneTime    Frequency = "one_time"
)

var frequencies = map[Frequency]bool{
	Weekly: true, Biweekly: true, Monthly: true, Quarterly: true,
	Semiannual: true, Annual: true, OneTime: true,
}

func (f Frequency) Valid() bool { return frequencies[f] }

// Category classifies a recurring obligation.
type Category string

const (
	Rent               Category = "rent"
	Services           Category = "services"
	Insurance          Category = "insurance"
	Payroll            Category = "payroll"
	Equipment          Category = "equipment"
	Subscriptions      Category = "subscriptions"
	VehicleMaintenance Category = "vehicle_maintenance"
	Fuel               Category = "fuel"
	Taxes              Category = "taxes"
	Legal              Category = "legal"
	Marketing          Category = "marketing"
	Telephony          Category = "telephony"
	Other              Category = "other"
)

var categories = map[Category]bool{
	Rent: true, Services: true, Insurance: true, Payroll: true,
	Equipment: true, Subscriptions: true, VehicleMaintenance: true,
	Fuel: true, Taxes: true, Legal: true, Marketing: true,
	Telephony: true, Other: true,
}

func (c Category) Valid() bool { return categories[c] }

// PaymentStatus is the settlement state of one billing period.
// A new period always starts unpaid; paid_via_invoice is a distinct
// settlement path that overrides paid/partial once applied.
type PaymentStatus string

const (
	StatusUnpaid         PaymentStatus = "unpaid"
	StatusPartial        PaymentStatus = "partial"
	StatusPaid           PaymentStatus = "paid"
	StatusPaidViaInvoice PaymentStatus = "paid_via_invoice"
)

// TransactionType distinguishes income from expense records.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNotFound         = errors.New("not found")
	ErrEmptyName        = errors.New("empty name")
)

// Obligation is a recurring fixed expense definition (rent, payroll,
// insurance) independent of any single payment against it.
type Obligation struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Category       Category  `json:"category"`
	Amount         Money     `json:"amount"` // owed per billing period
	Frequency      Frequency `json:"frequency"`
	StartDate      Date      `json:"startDate"`
	EndDate        Date      `json:"endDate,omitzero"` // zero when open-ended
	PaymentMethod  string    `json:"paymentMethod,omitempty"`
	PaymentAccount string    `json:"paymentAccount,omitempty"`
	StaffID        int64     `json:"staffId,omitempty"` // payroll only
	Active         bool      `json:"active"`
}

func (o Obligation) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return ErrEmptyName
	}
	if !o.Category.Valid() {
		return fmt.Errorf("unknown category %q", o.Category)
	}
	if err := o.Amount.Validate(); err != nil {
		return err
	}
	if !o.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, o.Frequency)
	}
	if err := o.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if !o.EndDate.IsZero() {
		if err := o.EndDate.Validate(); err != nil {
			return fmt.Errorf("end date: %w", err)
		}
		if o.EndDate.Before(o.StartDate) {
			return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, o.EndDate, o.StartDate)
		}
	}
	if o.Category == Payroll && o.StaffID == 0 {
		return errors.New("payroll obligation requires a staff reference")
	}
	if o.Category != Payroll && o.StaffID != 0 {
		return errors.New("staff reference is only valid for payroll")
	}
	return nil
}

// Receipt is an attachment reference on a payment.
type Receipt struct {
	URL      string `json:"url"`
	MIMEType string `json:"mimeType"`
}

// Payment is a single payment registered against one billing period of
// an obligation. Immutable once created, except for deletion.
type Payment struct {
	ID            int64   `json:"id"`
	ObligationID  int64   `json:"obligationId"`
	PeriodStart   Date    `json:"periodStart"`
	PeriodEnd     Date    `json:"periodEnd"`
	Amount        Money   `json:"amount"`
	PaymentDate   Date    `json:"paymentDate"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Receipt       Receipt `json:"receipt,omitzero"`
}

func (p Payment) Validate() error {
	if p.ObligationID == 0 {
		return errors.New("payment requires an obligation reference")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if err := p.PeriodStart.Validate(); err != nil {
		return fmt.Errorf("period start: %w", err)
	}
	if err := p.PeriodEnd.Validate(); err != nil {
		return fmt.Errorf("period end: %w", err)
	}
	if p.PeriodEnd.Before(p.PeriodStart) {
		return fmt.Errorf("%w: period end %s before start %s", ErrInvalidRange, p.PeriodEnd, p.PeriodStart)
	}
	if err := p.PaymentDate.Validate(); err != nil {
		return fmt.Errorf("payment date: %w", err)
	}
	return nil
}

// PeriodWindow is one billing cycle's date range, derived on demand
// from an obligation's frequency. Never persisted.
type PeriodWindow struct {
	Start Date   `json:"startDate"`
	End   Date   `json:"endDate"`
	Label string `json:"displayLabel"`
}

// Matches reports whether a payment's period is an exact match for the
// window. Mismatched windows are never implicitly merged.
func (w PeriodWindow) Matches(start, end Date) bool {
	return w.Start.Equal(start) && w.End.Equal(end)
}

// Transaction is a flat financial record (income or expense) consumed
// by the reconciler. Read-only to this engine. ObligationID links
// ledger-derived expense entries back to their obligation.
type Transaction struct {
	ID              int64           `json:"id"`
	Type            TransactionType `json:"type"`
	Category        string          `json:"category"`
	Amount          Money           `json:"amount"`
	Date            Date            `json:"date"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	PropertyAddress string          `json:"propertyAddress,omitempty"`
	Description     string          `json:"description,omitempty"`
	Vendor          string          `json:"vendor,omitempty"`
	ObligationID    int64           `json:"obligationId,omitempty"`
	PaymentID       int64           `json:"paymentId,omitempty"`
}

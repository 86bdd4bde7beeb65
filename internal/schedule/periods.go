// Package schedule derives billing periods from a recurring obligation.
//
// Period generation is a pure function of the obligation and the as-of
// date: the same inputs always yield the same windows. Each frequency
// has its own stepper that advances the anchor start date to the i-th
// period start, so month-end clamping never loses the original
// day-of-month (Jan 31 -> Feb 28 -> Mar 31, not Mar 28).
package schedule

import (
	"fmt"

	"gastos/internal/core"
)

// Stepper returns the start date of the i-th period for an anchor
// start date. i = 0 is the first period.
type Stepper func(start core.Date, i int) core.Date

var steppers = map[core.Frequency]Stepper{
	core.Weekly:     func(s core.Date, i int) core.Date { return s.AddDays(7 * i) },
	core.Biweekly:   func(s core.Date, i int) core.Date { return s.AddDays(14 * i) },
	core.Monthly:    func(s core.Date, i int) core.Date { return s.AddMonths(i) },
	core.Quarterly:  func(s core.Date, i int) core.Date { return s.AddMonths(3 * i) },
	core.Semiannual: func(s core.Date, i int) core.Date { return s.AddMonths(6 * i) },
	core.Annual:     func(s core.Date, i int) core.Date { return s.AddMonths(12 * i) },
}

// StepperFor returns the stepper for a frequency, or
// core.ErrInvalidFrequency for one_time and unknown values.
func StepperFor(f core.Frequency) (Stepper, error) {
	step, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
	return step, nil
}

// Periods generates the ordered, contiguous, non-overlapping billing
// windows of an obligation whose start does not exceed asOf or the
// obligation's end date. A one_time obligation yields exactly one
// window regardless of asOf.
func Periods(ob core.Obligation, asOf core.Date) ([]core.PeriodWindow, error) {
	if !ob.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, ob.Frequency)
	}
	if !ob.EndDate.IsZero() && ob.EndDate.Before(ob.StartDate) {
		return nil, fmt.Errorf("%w: end %s before start %s", core.ErrInvalidRange, ob.EndDate, ob.StartDate)
	}

	if ob.Frequency == core.OneTime {
		end := ob.EndDate
		if end.IsZero() {
			end = ob.StartDate
		}
		w := core.PeriodWindow{Start: ob.StartDate, End: end}
		w.Label = Label(ob.Frequency, w.Start, w.End)
		return []core.PeriodWindow{w}, nil
	}

	step := steppers[ob.Frequency]
	var windows []core.PeriodWindow
	for i := 0; ; i++ {
		start := step(ob.StartDate, i)
		if start.After(asOf) {
			break
		}
		if !ob.EndDate.IsZero() && start.After(ob.EndDate) {
			break
		}
		end := step(ob.StartDate, i+1).AddDays(-1)
		if !ob.EndDate.IsZero() && end.After(ob.EndDate) {
			end = ob.EndDate
		}
		windows = append(windows, core.PeriodWindow{
			Start: start,
			End:   end,
			Label: Label(ob.Frequency, start, end),
		})
	}
	return windows, nil
}

// Current returns the most recent window of the obligation as of the
// given date, and false when no period has started yet.
func Current(ob core.Obligation, asOf core.Date) (core.PeriodWindow, bool, error) {
	windows, err := Periods(ob, asOf)
	if err != nil || len(windows) == 0 {
		return core.PeriodWindow{}, false, err
	}
	return windows[len(windows)-1], true, nil
}

// Following returns the start date of the period after the given
// window. Windows are contiguous, so this is the day after the end.
func Following(w core.PeriodWindow) core.Date {
	return w.End.AddDays(1)
}

// Label builds the display label for a window. Monthly windows show
// the month name, annual windows the year, everything else the raw
// date range.
func Label(f core.Frequency, start, end core.Date) string {
	switch f {
	case core.Monthly:
		return start.Time().Format("January 2006")
	case core.Annual:
		return start.Time().Format("2006")
	default:
		return start.String() + " / " + end.String()
	}
}

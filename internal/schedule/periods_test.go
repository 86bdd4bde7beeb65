package schedule

import (
	"errors"
	"testing"

	"gastos/internal/core"
)

func d(year, month, day int) core.Date {
	return core.Date{Year: year, Month: month, Day: day}
}

func monthly(start core.Date) core.Obligation {
	return core.Obligation{
		Name:      "Office rent",
		Category:  core.Rent,
		Amount:    core.Money{Cents: 120000},
		Frequency: core.Monthly,
		StartDate: start,
		Active:    true,
	}
}

func TestPeriodsMonthly(t *testing.T) {
	ob := monthly(d(2025, 1, 1))

	windows, err := Periods(ob, d(2025, 3, 15))
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}

	want := []core.PeriodWindow{
		{Start: d(2025, 1, 1), End: d(2025, 1, 31)},
		{Start: d(2025, 2, 1), End: d(2025, 2, 28)},
		{Start: d(2025, 3, 1), End: d(2025, 3, 31)},
	}
	for i, w := range want {
		if !windows[i].Start.Equal(w.Start) || !windows[i].End.Equal(w.End) {
			t.Errorf("window %d = %s..%s, want %s..%s",
				i, windows[i].Start, windows[i].End, w.Start, w.End)
		}
	}
	if windows[0].Label != "January 2025" {
		t.Errorf("label = %q, want %q", windows[0].Label, "January 2025")
	}
}

func TestPeriodsContiguous(t *testing.T) {
	frequencies := []core.Frequency{
		core.Weekly, core.Biweekly, core.Monthly,
		core.Quarterly, core.Semiannual, core.Annual,
	}

	for _, f := range frequencies {
		t.Run(string(f), func(t *testing.T) {
			ob := monthly(d(2023, 1, 31))
			ob.Frequency = f

			windows, err := Periods(ob, d(2025, 6, 1))
			if err != nil {
				t.Fatalf("Periods: %v", err)
			}
			if len(windows) < 2 {
				t.Fatalf("got %d windows, want at least 2", len(windows))
			}
			for i := 1; i < len(windows); i++ {
				gap := windows[i-1].End.AddDays(1)
				if !windows[i].Start.Equal(gap) {
					t.Errorf("window %d starts %s, want %s (day after previous end)",
						i, windows[i].Start, gap)
				}
				if !windows[i-1].Start.Before(windows[i].Start) {
					t.Errorf("windows out of order at %d", i)
				}
			}
		})
	}
}

func TestPeriodsMonthEndAnchor(t *testing.T) {
	// An obligation anchored on the 31st clamps to short months but
	// returns to the 31st afterwards.
	ob := monthly(d(2025, 1, 31))

	windows, err := Periods(ob, d(2025, 4, 30))
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	starts := []core.Date{
		d(2025, 1, 31), d(2025, 2, 28), d(2025, 3, 31), d(2025, 4, 30),
	}
	if len(windows) != len(starts) {
		t.Fatalf("got %d windows, want %d", len(windows), len(starts))
	}
	for i, s := range starts {
		if !windows[i].Start.Equal(s) {
			t.Errorf("window %d start = %s, want %s", i, windows[i].Start, s)
		}
	}
}

func TestPeriodsDeterministic(t *testing.T) {
	ob := monthly(d(2024, 7, 15))
	asOf := d(2025, 2, 1)

	a, err := Periods(ob, asOf)
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	b, err := Periods(ob, asOf)
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("window %d differs between runs", i)
		}
	}
}

func TestPeriodsOneTime(t *testing.T) {
	ob := monthly(d(2025, 6, 1))
	ob.Frequency = core.OneTime
	ob.EndDate = d(2025, 6, 30)

	// asOf before the start still yields the single window.
	windows, err := Periods(ob, d(2025, 1, 1))
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	if !windows[0].Start.Equal(ob.StartDate) || !windows[0].End.Equal(ob.EndDate) {
		t.Errorf("window = %s..%s, want %s..%s",
			windows[0].Start, windows[0].End, ob.StartDate, ob.EndDate)
	}

	t.Run("no end date collapses to start", func(t *testing.T) {
		ob := monthly(d(2025, 6, 1))
		ob.Frequency = core.OneTime
		windows, err := Periods(ob, d(2025, 12, 1))
		if err != nil {
			t.Fatalf("Periods: %v", err)
		}
		if len(windows) != 1 || !windows[0].End.Equal(ob.StartDate) {
			t.Errorf("want single window ending on start date, got %+v", windows)
		}
	})
}

func TestPeriodsEndDateClamp(t *testing.T) {
	ob := monthly(d(2025, 1, 1))
	ob.EndDate = d(2025, 2, 15)

	windows, err := Periods(ob, d(2025, 6, 1))
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if !windows[1].End.Equal(ob.EndDate) {
		t.Errorf("last window end = %s, want clamped to %s", windows[1].End, ob.EndDate)
	}
}

func TestPeriodsBeforeStart(t *testing.T) {
	ob := monthly(d(2025, 6, 1))

	windows, err := Periods(ob, d(2025, 5, 31))
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("got %d windows before start date, want 0", len(windows))
	}
}

func TestPeriodsErrors(t *testing.T) {
	t.Run("unknown frequency", func(t *testing.T) {
		ob := monthly(d(2025, 1, 1))
		ob.Frequency = "fortnightly"
		if _, err := Periods(ob, d(2025, 2, 1)); !errors.Is(err, core.ErrInvalidFrequency) {
			t.Errorf("error = %v, want ErrInvalidFrequency", err)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		ob := monthly(d(2025, 6, 1))
		ob.EndDate = d(2025, 1, 1)
		if _, err := Periods(ob, d(2025, 7, 1)); !errors.Is(err, core.ErrInvalidRange) {
			t.Errorf("error = %v, want ErrInvalidRange", err)
		}
	})
}

func TestCurrent(t *testing.T) {
	ob := monthly(d(2025, 1, 1))

	w, ok, err := Current(ob, d(2025, 3, 10))
	if err != nil || !ok {
		t.Fatalf("Current: ok=%v err=%v", ok, err)
	}
	if !w.Start.Equal(d(2025, 3, 1)) {
		t.Errorf("current start = %s, want 2025-03-01", w.Start)
	}

	_, ok, err = Current(ob, d(2024, 12, 31))
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if ok {
		t.Error("expected no current window before start date")
	}
}

func TestFollowing(t *testing.T) {
	w := core.PeriodWindow{Start: d(2025, 1, 1), End: d(2025, 1, 31)}
	if got := Following(w); !got.Equal(d(2025, 2, 1)) {
		t.Errorf("Following = %s, want 2025-02-01", got)
	}
}

func TestStepperFor(t *testing.T) {
	if _, err := StepperFor(core.OneTime); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Errorf("one_time: error = %v, want ErrInvalidFrequency", err)
	}
	step, err := StepperFor(core.Quarterly)
	if err != nil {
		t.Fatalf("StepperFor: %v", err)
	}
	if got := step(d(2025, 1, 15), 2); !got.Equal(d(2025, 7, 15)) {
		t.Errorf("quarterly step 2 = %s, want 2025-07-15", got)
	}
}

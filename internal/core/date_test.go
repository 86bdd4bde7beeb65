package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{"valid date", "2025-01-15", Date{2025, 1, 15}, false},
		{"leap day", "2024-02-29", Date{2024, 2, 29}, false},
		{"non-leap feb 29", "2025-02-29", Date{}, true},
		{"month out of range", "2025-13-01", Date{}, true},
		{"day out of range", "2025-04-31", Date{}, true},
		{"wrong format", "15/01/2025", Date{}, true},
		{"empty", "", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDateString(t *testing.T) {
	d := Date{2025, 3, 7}
	if got := d.String(); got != "2025-03-07" {
		t.Errorf("String() = %q, want %q", got, "2025-03-07")
	}
}

func TestAddMonthsClamping(t *testing.T) {
	tests := []struct {
		name  string
		start Date
		n     int
		want  Date
	}{
		{"simple advance", Date{2025, 1, 15}, 1, Date{2025, 2, 15}},
		{"jan 31 into feb", Date{2025, 1, 31}, 1, Date{2025, 2, 28}},
		{"jan 31 into leap feb", Date{2024, 1, 31}, 1, Date{2024, 2, 29}},
		{"year rollover", Date{2024, 11, 30}, 3, Date{2025, 2, 28}},
		{"backwards", Date{2025, 3, 31}, -1, Date{2025, 2, 28}},
		{"twelve months", Date{2025, 6, 15}, 12, Date{2026, 6, 15}},
		{"zero", Date{2025, 6, 15}, 0, Date{2025, 6, 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.AddMonths(tt.n); !got.Equal(tt.want) {
				t.Errorf("%v.AddMonths(%d) = %v, want %v", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestAddMonthsAnchorPreserved(t *testing.T) {
	// Stepping from the original anchor must not drift: 3 months from
	// Jan 31 lands on Apr 30, not on whatever Feb's clamp produced.
	anchor := Date{2025, 1, 31}
	if got := anchor.AddMonths(3); !got.Equal(Date{2025, 4, 30}) {
		t.Errorf("AddMonths(3) = %v, want 2025-04-30", got)
	}
	if got := anchor.AddMonths(2); !got.Equal(Date{2025, 3, 31}) {
		t.Errorf("AddMonths(2) = %v, want 2025-03-31", got)
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		name  string
		start Date
		n     int
		want  Date
	}{
		{"within month", Date{2025, 1, 10}, 5, Date{2025, 1, 15}},
		{"month boundary", Date{2025, 1, 31}, 1, Date{2025, 2, 1}},
		{"year boundary", Date{2024, 12, 31}, 1, Date{2025, 1, 1}},
		{"negative", Date{2025, 3, 1}, -1, Date{2025, 2, 28}},
		{"leap boundary", Date{2024, 2, 28}, 1, Date{2024, 2, 29}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.AddDays(tt.n); !got.Equal(tt.want) {
				t.Errorf("%v.AddDays(%d) = %v, want %v", tt.start, tt.n, got, tt.want)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	a := Date{2025, 1, 15}
	b := Date{2025, 1, 16}

	if !a.Before(b) {
		t.Error("expected a.Before(b)")
	}
	if !b.After(a) {
		t.Error("expected b.After(a)")
	}
	if a.After(b) || b.Before(a) {
		t.Error("ordering inverted")
	}
	if !a.Equal(a) {
		t.Error("expected a.Equal(a)")
	}
}

func TestDateOfUsesUTC(t *testing.T) {
	// All instants are truncated to their UTC calendar day, so a date
	// parsed from "2006-01-02" always renders back as the same day.
	utc := time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC)
	if got := DateOf(utc); !got.Equal(Date{2025, 1, 31}) {
		t.Errorf("DateOf = %v, want 2025-01-31", got)
	}

	// West-of-UTC local evenings land on the following UTC day.
	loc := time.FixedZone("UTC-6", -6*3600)
	instant := time.Date(2025, 1, 31, 23, 30, 0, 0, loc)
	if got := DateOf(instant); !got.Equal(Date{2025, 2, 1}) {
		t.Errorf("DateOf = %v, want 2025-02-01", got)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := Date{2025, 2, 28}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"2025-02-28"` {
		t.Errorf("Marshal = %s, want %q", data, `"2025-02-28"`)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %v, want %v", back, d)
	}
}

func TestDaysIn(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2025, 1, 31},
		{2025, 2, 28},
		{2024, 2, 29},
		{2025, 4, 30},
		{2100, 2, 28}, // century non-leap
		{2000, 2, 29}, // quadricentennial leap
	}

	for _, tt := range tests {
		if got := DaysIn(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysIn(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

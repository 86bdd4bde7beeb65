package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gastos/internal/core"
)

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("fourth request should be rejected")
	}
	// A different client has its own budget.
	if !rl.allow("10.0.0.2") {
		t.Error("other client should be allowed")
	}
}

func TestMiddlewareRateLimitsWrites(t *testing.T) {
	s := &Server{rateLimiter: newRateLimiter(1)}
	defer s.rateLimiter.stop()

	handler := s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.9")
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusCreated {
		t.Fatalf("first write: status = %d, want 201", rec.Code)
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestMiddlewareDoesNotRateLimitReads(t *testing.T) {
	s := &Server{rateLimiter: newRateLimiter(1)}
	defer s.rateLimiter.stop()

	handler := s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("read %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestMiddlewareSecurityHeaders(t *testing.T) {
	s := &Server{rateLimiter: newRateLimiter(100)}
	defer s.rateLimiter.stop()

	handler := s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", core.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", core.ErrNotFound), http.StatusNotFound},
		{"invalid amount", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"invalid frequency", core.ErrInvalidFrequency, http.StatusUnprocessableEntity},
		{"invalid range", core.ErrInvalidRange, http.StatusUnprocessableEntity},
		{"invalid date", core.ErrInvalidDate, http.StatusUnprocessableEntity},
		{"empty name", core.ErrEmptyName, http.StatusUnprocessableEntity},
		{"unknown", fmt.Errorf("db exploded"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestAmountToCents(t *testing.T) {
	got, err := amountToCents(json.Number("1250.50"))
	if err != nil {
		t.Fatalf("amountToCents: %v", err)
	}
	if got != 125050 {
		t.Errorf("cents = %d, want 125050", got)
	}

	if _, err := amountToCents(json.Number("-5")); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAsOfParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/obligations/pending?as_of=2025-03-15", nil)
	got, err := asOfParam(req)
	if err != nil {
		t.Fatalf("asOfParam: %v", err)
	}
	if !got.Equal(core.Date{Year: 2025, Month: 3, Day: 15}) {
		t.Errorf("asOf = %s, want 2025-03-15", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/obligations/pending?as_of=garbage", nil)
	if _, err := asOfParam(req); err == nil {
		t.Error("expected parse error")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/obligations/pending", nil)
	if _, err := asOfParam(req); err != nil {
		t.Errorf("missing param should default, got error %v", err)
	}
}

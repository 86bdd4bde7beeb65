package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gastos/internal/core"
)

type paymentRequest struct {
	ObligationID  int64       `json:"obligationId"`
	PeriodStart   string      `json:"periodStart"`
	PeriodEnd     string      `json:"periodEnd"`
	Amount        json.Number `json:"amount"`
	PaymentDate   string      `json:"paymentDate"`
	PaymentMethod string      `json:"paymentMethod"`
	Notes         string      `json:"notes"`
	Receipt       *struct {
		URL      string `json:"url"`
		MIMEType string `json:"mimeType"`
	} `json:"receipt"`
}

func (s *Server) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := amountToCents(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	start, err := core.ParseDate(req.PeriodStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	end, err := core.ParseDate(req.PeriodEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	paymentDate := core.DateOf(time.Now())
	if req.PaymentDate != "" {
		if paymentDate, err = core.ParseDate(req.PaymentDate); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	p := core.Payment{
		ObligationID:  req.ObligationID,
		PeriodStart:   start,
		PeriodEnd:     end,
		Amount:        core.Money{Cents: cents},
		PaymentDate:   paymentDate,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if req.Receipt != nil {
		p.Receipt = core.Receipt{URL: req.Receipt.URL, MIMEType: req.Receipt.MIMEType}
	}

	result, err := s.svc.RegisterPayment(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Register payment error",
			"obligation_id", req.ObligationID, "error", err)
		writeDomainError(w, err)
		return
	}

	s.invalidateReadCaches()
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	result, err := s.svc.DeletePayment(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete payment error", "payment_id", id, "error", err)
		writeDomainError(w, err)
		return
	}

	s.invalidateReadCaches()
	writeJSON(w, http.StatusOK, result)
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"gastos/internal/core"
	"gastos/internal/registry"
)

type obligationRequest struct {
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	TotalAmount    json.Number `json:"totalAmount"`
	Frequency      string      `json:"frequency"`
	StartDate      string      `json:"startDate"`
	EndDate        string      `json:"endDate"`
	PaymentMethod  string      `json:"paymentMethod"`
	PaymentAccount string      `json:"paymentAccount"`
	StaffID        int64       `json:"staffId"`
}

func (s *Server) handleCreateObligation(w http.ResponseWriter, r *http.Request) {
	var req obligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := amountToCents(req.TotalAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = core.ParseDate(req.EndDate); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	ob, err := s.svc.CreateObligation(r.Context(), core.Obligation{
		Name:           req.Name,
		Category:       core.Category(req.Category),
		Amount:         core.Money{Cents: cents},
		Frequency:      core.Frequency(req.Frequency),
		StartDate:      start,
		EndDate:        end,
		PaymentMethod:  req.PaymentMethod,
		PaymentAccount: req.PaymentAccount,
		StaffID:        req.StaffID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateReadCaches()
	writeJSON(w, http.StatusCreated, ob)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	includeAll := r.URL.Query().Get("filter") == "all"

	key := asOf.String()
	if includeAll {
		key += "|all"
	}
	if cached, ok := s.pendingCache.Get(key); ok {
		writeJSON(w, http.StatusOK, pendingResponse(cached))
		return
	}

	pending, err := s.svc.Pending(r.Context(), asOf, includeAll)
	if err != nil {
		slog.ErrorContext(r.Context(), "Pending list error", "error", err)
		writeDomainError(w, err)
		return
	}
	s.pendingCache.Set(key, pending)
	writeJSON(w, http.StatusOK, pendingResponse(pending))
}

func pendingResponse(items []registry.PendingObligation) map[string]any {
	if items == nil {
		items = []registry.PendingObligation{}
	}
	return map[string]any{"pending": items, "count": len(items)}
}

func (s *Server) handleListPaid(w http.ResponseWriter, r *http.Request) {
	from, err := core.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from is required as YYYY-MM-DD")
		return
	}
	to, err := core.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to is required as YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeDomainError(w, core.ErrInvalidRange)
		return
	}

	settled, err := s.svc.Paid(r.Context(), core.PeriodWindow{Start: from, End: to})
	if err != nil {
		slog.ErrorContext(r.Context(), "Paid list error", "error", err)
		writeDomainError(w, err)
		return
	}
	if settled == nil {
		settled = []registry.SettledPeriod{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"paid": settled, "count": len(settled)})
}

func (s *Server) handlePendingPeriods(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid obligation id")
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	periods, err := s.svc.PendingPeriods(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if periods == nil {
		periods = []core.PeriodWindow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

type settleInvoiceRequest struct {
	PeriodStart   string `json:"periodStart"`
	PeriodEnd     string `json:"periodEnd"`
	TransactionID int64  `json:"transactionId"`
}

func (s *Server) handleSettleInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid obligation id")
		return
	}

	var req settleInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
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

	if err := s.svc.SettleByInvoice(r.Context(), id, start, end, req.TransactionID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateReadCaches()
	writeJSON(w, http.StatusOK, map[string]any{"status": core.StatusPaidViaInvoice})
}

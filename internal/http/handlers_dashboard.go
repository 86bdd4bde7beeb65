package http

import (
	"log/slog"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/reconcile"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var f reconcile.Filter
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if f.From, err = core.ParseDate(v); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if f.To, err = core.ParseDate(v); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	key := f.From.String() + "|" + f.To.String()
	if cached, ok := s.dashboardCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	d, err := s.svc.Dashboard(r.Context(), f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard error", "error", err)
		writeDomainError(w, err)
		return
	}

	for _, warning := range d.Alerts.IntegrityWarnings {
		slog.WarnContext(r.Context(), "Category integrity warning",
			"category", warning.Category,
			"reported_cents", warning.Reported.Cents,
			"computed_cents", warning.Computed.Cents)
	}

	s.dashboardCache.Set(key, d)
	writeJSON(w, http.StatusOK, d)
}

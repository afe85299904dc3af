package web

import (
	"net/http"

	"clinic-billing/internal/core"
)

// dashboard handles GET /api/dashboard.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporting.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if report.Monthly == nil {
		report.Monthly = []core.MonthlySummary{}
	}
	writeJSON(w, report)
}

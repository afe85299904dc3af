package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"clinic-billing/internal/core"

	"github.com/go-chi/chi/v5"
)

// danglingGracePeriod is how long a reservation-log row may stay 'reserved'
// before the reconciliation report lists it.
const danglingGracePeriod = 5 * time.Minute

// listStocks handles GET /api/stock.
func (h *Handler) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.stock.ListStocks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if stocks == nil {
		stocks = []core.Stock{}
	}
	writeJSON(w, stocks)
}

// getStock handles GET /api/stock/{stockID}.
func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.Atoi(chi.URLParam(r, "stockID"))
	if err != nil {
		writeError(w, r, "stock id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	stock, err := h.stock.GetStock(r.Context(), stockID)
	if err != nil {
		if errors.Is(err, core.ErrStockNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stock)
}

// stockByDrug handles GET /api/stock/drug/{drugID}.
func (h *Handler) stockByDrug(w http.ResponseWriter, r *http.Request) {
	drugID, err := strconv.Atoi(chi.URLParam(r, "drugID"))
	if err != nil {
		writeError(w, r, "drug id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	stocks, err := h.stock.GetStocksByDrug(r.Context(), drugID)
	if err != nil {
		if errors.Is(err, core.ErrDrugNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stocks)
}

// danglingReservations handles GET /api/stock/reservations/dangling — the
// human reconciliation surface for reservations whose billing-store write
// may never have landed.
func (h *Handler) danglingReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.stock.DanglingReservations(r.Context(), danglingGracePeriod)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []core.Reservation{}
	}
	writeJSON(w, reservations)
}

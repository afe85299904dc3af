// Package web is the HTTP JSON adapter. Handlers depend on the core service
// interfaces only, so tests can substitute doubles.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"clinic-billing/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds the core services and the chi router.
type Handler struct {
	billing   core.BillingService
	stock     core.StockService
	reporting core.ReportingService
	expenses  core.ExpenseService
	users     core.UserService
	health    func(context.Context) error
	jwtSecret string
}

// NewHandler wires the chi router with all routes. healthCheck is called by
// GET /api/health and should ping both store pools.
func NewHandler(
	billing core.BillingService,
	stock core.StockService,
	reporting core.ReportingService,
	expenses core.ExpenseService,
	users core.UserService,
	healthCheck func(context.Context) error,
	allowedOrigins, jwtSecret string,
) http.Handler {
	h := &Handler{
		billing:   billing,
		stock:     stock,
		reporting: reporting,
		expenses:  expenses,
		users:     users,
		health:    healthCheck,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(Metrics)
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Authenticated API ─────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Bills
		r.Post("/api/bills", h.composeBill)
		r.Post("/api/bills/items", h.stageItems)
		r.Get("/api/bills/pending", h.listPending)
		r.Delete("/api/bills/items/{id}", h.removeItem)
		r.Post("/api/bills/confirm", h.confirmBill)
		r.Get("/api/bills/history", h.billHistory)
		r.Get("/api/bills/top-selling", h.topSelling)
		r.Get("/api/bills/{billID}", h.billDetail)

		// Stock
		r.Get("/api/stock", h.listStocks)
		r.Get("/api/stock/reservations/dangling", h.danglingReservations)
		r.Get("/api/stock/drug/{drugID}", h.stockByDrug)
		r.Get("/api/stock/{stockID}", h.getStock)

		// Reporting & expenses
		r.Get("/api/dashboard", h.dashboard)
		r.Get("/api/expenses", h.listExpenses)
		r.Post("/api/expenses", h.createExpense)
		r.Put("/api/expenses/{id}", h.updateExpense)
		r.Delete("/api/expenses/{id}", h.deleteExpense)
	})

	return r
}

// healthHandler reports service status after pinging both stores.
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeError(w, r, err.Error(), "UNHEALTHY", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v, writing an appropriate error
// response and returning false on failure. HTTP 413 when the body exceeds
// the RequestBodyLimit; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

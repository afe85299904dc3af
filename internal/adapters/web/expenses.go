package web

import (
	"errors"
	"net/http"
	"strconv"

	"clinic-billing/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type expenseRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// listExpenses handles GET /api/expenses.
func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.ListExpenses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, expenses)
}

// createExpense handles POST /api/expenses.
func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var body expenseRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	expense, err := h.expenses.CreateExpense(r.Context(), body.Name, body.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, expense)
}

// updateExpense handles PUT /api/expenses/{id}.
func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "expense id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body expenseRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	expense, err := h.expenses.UpdateExpense(r.Context(), id, body.Name, body.Amount)
	if err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, expense)
}

// deleteExpense handles DELETE /api/expenses/{id}.
func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "expense id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := h.expenses.DeleteExpense(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"message": "expense deleted"})
}

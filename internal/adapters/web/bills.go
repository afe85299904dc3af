package web

import (
	"errors"
	"net/http"
	"strconv"

	"clinic-billing/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// composeBill handles POST /api/bills.
// Body: { items: [{stock_id?, service?, price?, custom_price?, quantity}],
//         customer_name?, discount? }
func (h *Handler) composeBill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items        []core.BillItemInput `json:"items"`
		CustomerName *string              `json:"customer_name"`
		Discount     decimal.Decimal      `json:"discount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	billID, err := h.billing.ComposeBill(r.Context(), body.Items, body.CustomerName, body.Discount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"message": "bill created",
		"bill_id": billID,
	})
}

// stageItems handles POST /api/bills/items.
// Body: { items: [...] } — items are staged as pending, stock reserved.
func (h *Handler) stageItems(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []core.BillItemInput `json:"items"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	staged, err := h.billing.StageItems(r.Context(), body.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"message": "items staged",
		"items":   staged,
	})
}

// listPending handles GET /api/bills/pending.
func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.billing.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []core.BillItem{}
	}
	writeJSON(w, items)
}

// removeItem handles DELETE /api/bills/items/{id}. A non-numeric id is the
// only pre-validated 400; a missing item surfaces as 500 like any other
// in-transaction failure.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "bill item id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := h.billing.RemoveItem(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"message": "bill item removed"})
}

// confirmBill handles POST /api/bills/confirm. Body: { discount }.
func (h *Handler) confirmBill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Discount decimal.Decimal `json:"discount"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	billID, err := h.billing.Confirm(r.Context(), body.Discount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"message": "bill confirmed",
		"bill_id": billID,
	})
}

// billHistory handles GET /api/bills/history?page=&searchQuery=.
func (h *Handler) billHistory(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.reporting.BillHistory(r.Context(), page, r.URL.Query().Get("searchQuery"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if result.Bills == nil {
		result.Bills = []core.Bill{}
	}
	writeJSON(w, result)
}

// billDetail handles GET /api/bills/{billID}.
func (h *Handler) billDetail(w http.ResponseWriter, r *http.Request) {
	billID, err := strconv.Atoi(chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, r, "bill id must be numeric", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	bill, err := h.reporting.BillDetail(r.Context(), billID)
	if err != nil {
		if errors.Is(err, core.ErrBillNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bill)
}

// topSelling handles GET /api/bills/top-selling. 404 when nothing has sold.
func (h *Handler) topSelling(w http.ResponseWriter, r *http.Request) {
	top, err := h.reporting.TopSelling(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(top) == 0 {
		writeError(w, r, "no sales recorded", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, top)
}

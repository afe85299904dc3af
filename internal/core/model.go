package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Drug is immutable catalog reference data, owned by the inventory store.
type Drug struct {
	ID       int    `json:"drug_id"`
	Name     string `json:"name"`
	DrugType string `json:"drug_type"`
	UnitType string `json:"unit_type"`
}

// Stock is a priced, quantity-tracked batch of a drug. Amount is mutated
// only by reservation (decrement) and release (increment) and never goes
// negative.
type Stock struct {
	ID        int             `json:"stock_id"`
	DrugID    int             `json:"drug_id"`
	DrugName  string          `json:"drug_name"` // joined from drugs
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    int             `json:"amount"`
	Expired   *time.Time      `json:"expired,omitempty"`
}

// BillItemStatus is the lifecycle state of one bill line.
type BillItemStatus string

const (
	BillItemPending   BillItemStatus = "pending"
	BillItemConfirmed BillItemStatus = "confirmed"
)

// BillItem is one priced line: either a catalog stock sale (StockID set)
// or a free-text service (Service set). Pending items carry no bill id;
// confirmed items belong to exactly one bill.
type BillItem struct {
	ID          int              `json:"bill_item_id"`
	BillID      *int             `json:"bill_id,omitempty"`
	StockID     *int             `json:"stock_id,omitempty"`
	Service     *string          `json:"service,omitempty"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
	Quantity    int              `json:"quantity"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Status      BillItemStatus   `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`

	// Display fields resolved by the application-side merge: drug name and
	// current unit price for catalog items, the service label for services.
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Bill is a finalized, priced collection of line items.
type Bill struct {
	ID           int             `json:"bill_id"`
	CustomerName *string         `json:"customer_name,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []BillItem      `json:"items,omitempty"`
}

// BillItemInput is one incoming line on a compose or stage request.
// Exactly one of StockID and Service must be set. Price applies to service
// lines; CustomPrice optionally overrides the catalog unit price.
type BillItemInput struct {
	StockID     *int             `json:"stock_id,omitempty"`
	Service     *string          `json:"service,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	CustomPrice *decimal.Decimal `json:"custom_price,omitempty"`
	Quantity    int              `json:"quantity"`
}

// Reservation is one row of the stock compensation log, written in the same
// inventory transaction as the stock decrement it records.
type Reservation struct {
	ID        int       `json:"id"`
	Token     uuid.UUID `json:"token"`
	StockID   int       `json:"stock_id"`
	Quantity  int       `json:"quantity"`
	State     string    `json:"state"` // reserved, consumed, released
	CreatedAt time.Time `json:"created_at"`
}

// Expense is a single clinic expense, owned by the billing store.
type Expense struct {
	ID        int             `json:"expense_id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// User is an operator account for the auth gate.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

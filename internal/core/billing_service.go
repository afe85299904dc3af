package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// BillingService manages the bill lifecycle on the billing store. Catalog
// items are priced and reserved through the Stock Ledger; the two stores
// have no shared transaction, so the composer compensates a committed
// reservation when the billing-store write fails.
type BillingService interface {
	// ComposeBill validates items, reserves stock, and creates a finalized
	// Bill with its confirmed line items in one call. Returns the bill id.
	ComposeBill(ctx context.Context, items []BillItemInput, customerName *string, discount decimal.Decimal) (int, error)

	// StageItems validates items, reserves stock, and inserts them as
	// pending lines belonging to no bill yet.
	StageItems(ctx context.Context, items []BillItemInput) ([]BillItem, error)

	// ListPending returns all pending items with drug names and current
	// unit prices resolved from the inventory store; service items surface
	// their service label as the name.
	ListPending(ctx context.Context) ([]BillItem, error)

	// RemoveItem deletes a pending item and, for catalog items, releases
	// the reserved stock. The sole compensating action for an abandoned
	// bill.
	RemoveItem(ctx context.Context, billItemID int) error

	// Confirm aggregates all pending items into one new Bill with the given
	// discount and flips them to confirmed. Billing store only; stock was
	// already reserved at staging time.
	Confirm(ctx context.Context, discount decimal.Decimal) (int, error)
}

type billingService struct {
	pool  *pgxpool.Pool
	stock StockService
}

// NewBillingService constructs a BillingService over the billing store pool
// and the Stock Ledger.
func NewBillingService(pool *pgxpool.Pool, stock StockService) BillingService {
	return &billingService{pool: pool, stock: stock}
}

// pricedItem is an input line with its resolved unit price and subtotal.
type pricedItem struct {
	input     BillItemInput
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

// reserveAndPrice reserves stock for every catalog item in one inventory
// transaction and resolves each line's unit price and subtotal. The
// returned token identifies the reservation batch for later compensation.
func (s *billingService) reserveAndPrice(ctx context.Context, items []BillItemInput) (uuid.UUID, []pricedItem, error) {
	token := uuid.New()

	var reqs []StockReservation
	for _, item := range items {
		if item.StockID != nil {
			reqs = append(reqs, StockReservation{StockID: *item.StockID, Quantity: item.Quantity})
		}
	}

	prices := map[int]decimal.Decimal{}
	if len(reqs) > 0 {
		var err error
		prices, err = s.stock.ReserveBatch(ctx, token, reqs)
		if err != nil {
			return token, nil, err
		}
	}

	priced := make([]pricedItem, 0, len(items))
	for _, item := range items {
		var catalogPrice decimal.Decimal
		if item.StockID != nil {
			catalogPrice = prices[*item.StockID]
		}
		unitPrice := ResolveUnitPrice(item, catalogPrice)
		priced = append(priced, pricedItem{
			input:     item,
			unitPrice: unitPrice,
			subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return token, priced, nil
}

// compensate releases a committed reservation batch after a billing-store
// failure. A failed release leaves the log rows 'reserved', where the
// dangling-reservation report picks them up.
func (s *billingService) compensate(ctx context.Context, token uuid.UUID) {
	if err := s.stock.ReleaseBatch(ctx, token); err != nil {
		slog.Error("stock release compensation failed; reservations left dangling",
			"token", token, "error", err)
	}
}

func (s *billingService) ComposeBill(ctx context.Context, items []BillItemInput, customerName *string, discount decimal.Decimal) (int, error) {
	if err := ValidateItems(items); err != nil {
		return 0, err
	}
	if err := ValidateDiscount(discount); err != nil {
		return 0, err
	}

	token, priced, err := s.reserveAndPrice(ctx, items)
	if err != nil {
		return 0, err
	}

	// Total is computed before any billing-store persistence.
	var total decimal.Decimal
	for _, p := range priced {
		total = total.Add(p.subtotal)
	}
	total = ApplyDiscount(total, discount)

	billID, err := s.insertBillWithItems(ctx, customerName, discount, total, priced)
	if err != nil {
		// Inventory store already committed the decrement; release it
		// before surfacing the error.
		s.compensate(ctx, token)
		return 0, err
	}

	if err := s.stock.MarkConsumed(ctx, token); err != nil {
		slog.Warn("failed to mark reservation batch consumed", "token", token, "error", err)
	}
	return billID, nil
}

func (s *billingService) insertBillWithItems(ctx context.Context, customerName *string, discount, total decimal.Decimal, priced []pricedItem) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bill transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var billID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bills (customer_name, discount, total_amount)
		VALUES ($1, $2, $3)
		RETURNING id
	`, customerName, discount, total).Scan(&billID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bill: %w", err)
	}

	for i, p := range priced {
		_, err = tx.Exec(ctx, `
			INSERT INTO bill_items (bill_id, stock_id, service, custom_price, quantity, subtotal, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'confirmed')
		`, billID, p.input.StockID, p.input.Service, p.input.CustomPrice, p.input.Quantity, p.subtotal)
		if err != nil {
			return 0, fmt.Errorf("failed to insert bill item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit bill: %w", err)
	}
	return billID, nil
}

func (s *billingService) StageItems(ctx context.Context, items []BillItemInput) ([]BillItem, error) {
	if err := ValidateItems(items); err != nil {
		return nil, err
	}

	token, priced, err := s.reserveAndPrice(ctx, items)
	if err != nil {
		return nil, err
	}

	staged, err := s.insertPendingItems(ctx, priced)
	if err != nil {
		s.compensate(ctx, token)
		return nil, err
	}

	if err := s.stock.MarkConsumed(ctx, token); err != nil {
		slog.Warn("failed to mark reservation batch consumed", "token", token, "error", err)
	}
	return staged, nil
}

func (s *billingService) insertPendingItems(ctx context.Context, priced []pricedItem) ([]BillItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	staged := make([]BillItem, 0, len(priced))
	for i, p := range priced {
		item := BillItem{
			StockID:     p.input.StockID,
			Service:     p.input.Service,
			CustomPrice: p.input.CustomPrice,
			Quantity:    p.input.Quantity,
			Subtotal:    p.subtotal,
			Status:      BillItemPending,
			UnitPrice:   p.unitPrice,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO bill_items (stock_id, service, custom_price, quantity, subtotal, status)
			VALUES ($1, $2, $3, $4, $5, 'pending')
			RETURNING id, created_at
		`, p.input.StockID, p.input.Service, p.input.CustomPrice, p.input.Quantity, p.subtotal).
			Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert pending item %d: %w", i+1, err)
		}
		staged = append(staged, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit staged items: %w", err)
	}
	return staged, nil
}

func (s *billingService) ListPending(ctx context.Context) ([]BillItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, bill_id, stock_id, service, custom_price, quantity, subtotal, status, created_at
		FROM bill_items
		WHERE status = 'pending'
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending items: %w", err)
	}
	defer rows.Close()

	var items []BillItem
	for rows.Next() {
		var item BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.StockID, &item.Service,
			&item.CustomPrice, &item.Quantity, &item.Subtotal, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending items: %w", err)
	}

	// Resolve drug names and prices from the inventory store by id-set.
	stocks, err := s.stock.GetStocksByIDs(ctx, CollectStockIDs(items))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stock details: %w", err)
	}
	ResolveItemNames(items, stocks)
	return items, nil
}

func (s *billingService) RemoveItem(ctx context.Context, billItemID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin removal transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var stockID *int
	var quantity int
	err = tx.QueryRow(ctx, `
		SELECT stock_id, quantity FROM bill_items
		WHERE id = $1 AND status = 'pending'
		FOR UPDATE
	`, billItemID).Scan(&stockID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrBillItemNotFound, billItemID)
		}
		return fmt.Errorf("failed to fetch bill item %d: %w", billItemID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM bill_items WHERE id = $1", billItemID); err != nil {
		return fmt.Errorf("failed to delete bill item %d: %w", billItemID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit item removal: %w", err)
	}

	// Restore the reserved quantity. If this fails after the delete has
	// committed, the decrement stands until someone reconciles it.
	if stockID != nil {
		if err := s.stock.Release(ctx, *stockID, quantity); err != nil {
			return fmt.Errorf("item removed but stock release failed: %w", err)
		}
	}
	return nil
}

func (s *billingService) Confirm(ctx context.Context, discount decimal.Decimal) (int, error) {
	if err := ValidateDiscount(discount); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin confirmation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		"SELECT subtotal FROM bill_items WHERE status = 'pending' FOR UPDATE",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to lock pending items: %w", err)
	}

	var total decimal.Decimal
	var count int
	for rows.Next() {
		var subtotal decimal.Decimal
		if err := rows.Scan(&subtotal); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan pending subtotal: %w", err)
		}
		total = total.Add(subtotal)
		count++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating pending items: %w", err)
	}
	if count == 0 {
		return 0, ErrNothingToConfirm
	}

	discounted := ApplyDiscount(total, discount)

	var billID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bills (customer_name, discount, total_amount)
		VALUES (NULL, $1, $2)
		RETURNING id
	`, discount, discounted).Scan(&billID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bill: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bill_items SET status = 'confirmed', bill_id = $1
		WHERE status = 'pending'
	`, billID); err != nil {
		return 0, fmt.Errorf("failed to confirm pending items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit bill confirmation: %w", err)
	}
	return billID, nil
}

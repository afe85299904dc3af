package core_test

import (
	"errors"
	"testing"

	"clinic-billing/internal/core"

	"github.com/shopspring/decimal"
)

func TestBilling_ComposeBill_StockItem(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	// 2 units of stock 5 @ 50 = 100.
	billID, err := billingSvc.ComposeBill(ctx, []core.BillItemInput{
		{StockID: intPtr(5), Quantity: 2},
	}, strPtr("Alice"), decimal.Zero)
	if err != nil {
		t.Fatalf("ComposeBill failed: %v", err)
	}

	var total decimal.Decimal
	var customer *string
	if err := billing.QueryRow(ctx,
		"SELECT total_amount, customer_name FROM bills WHERE id = $1", billID,
	).Scan(&total, &customer); err != nil {
		t.Fatalf("Failed to read bill: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", total)
	}
	if customer == nil || *customer != "Alice" {
		t.Errorf("expected customer Alice, got %v", customer)
	}

	if got := stockAmount(t, ctx, inventory, 5); got != 8 {
		t.Errorf("expected stock 5 decremented to 8, got %d", got)
	}
	states := reservationStates(t, ctx, inventory, 5)
	if len(states) != 1 || states[0] != "consumed" {
		t.Errorf("expected reservation marked consumed, got %v", states)
	}

	var status string
	var itemBillID int
	if err := billing.QueryRow(ctx,
		"SELECT status, bill_id FROM bill_items WHERE stock_id = 5",
	).Scan(&status, &itemBillID); err != nil {
		t.Fatalf("Failed to read bill item: %v", err)
	}
	if status != "confirmed" || itemBillID != billID {
		t.Errorf("expected confirmed item on bill %d, got status=%s bill_id=%d", billID, status, itemBillID)
	}
}

func TestBilling_ComposeBill_ServiceItemSkipsLedger(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	billID, err := billingSvc.ComposeBill(ctx, []core.BillItemInput{
		{Service: strPtr("consultation"), Price: decPtr(decimal.NewFromInt(150)), Quantity: 1},
	}, nil, decimal.Zero)
	if err != nil {
		t.Fatalf("ComposeBill failed: %v", err)
	}

	var total decimal.Decimal
	if err := billing.QueryRow(ctx,
		"SELECT total_amount FROM bills WHERE id = $1", billID,
	).Scan(&total); err != nil {
		t.Fatalf("Failed to read bill: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected total 150, got %s", total)
	}

	// No stock touched, no reservation logged.
	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("service-only bill must not touch stock, got %d", got)
	}
	var logged int
	if err := inventory.QueryRow(ctx, "SELECT COUNT(*) FROM stock_reservations").Scan(&logged); err != nil {
		t.Fatalf("Failed to count reservations: %v", err)
	}
	if logged != 0 {
		t.Errorf("service-only bill must not log reservations, got %d", logged)
	}
}

func TestBilling_ComposeBill_CustomPriceAndDiscount(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	// 2 @ custom 40 + 1 service @ 120 = 200, minus 10% = 180.
	billID, err := billingSvc.ComposeBill(ctx, []core.BillItemInput{
		{StockID: intPtr(5), CustomPrice: decPtr(decimal.NewFromInt(40)), Quantity: 2},
		{Service: strPtr("dressing"), Price: decPtr(decimal.NewFromInt(120)), Quantity: 1},
	}, nil, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("ComposeBill failed: %v", err)
	}

	var total decimal.Decimal
	if err := billing.QueryRow(ctx,
		"SELECT total_amount FROM bills WHERE id = $1", billID,
	).Scan(&total); err != nil {
		t.Fatalf("Failed to read bill: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected discounted total 180, got %s", total)
	}
}

func TestBilling_ComposeBill_InsufficientStockWritesNothing(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	_, err := billingSvc.ComposeBill(ctx, []core.BillItemInput{
		{StockID: intPtr(6), Quantity: 99},
	}, nil, decimal.Zero)
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := stockAmount(t, ctx, inventory, 6); got != 3 {
		t.Errorf("failed reservation must not decrement stock, got %d", got)
	}
	var bills int
	if err := billing.QueryRow(ctx, "SELECT COUNT(*) FROM bills").Scan(&bills); err != nil {
		t.Fatalf("Failed to count bills: %v", err)
	}
	if bills != 0 {
		t.Errorf("failed compose must not create a bill, got %d", bills)
	}
}

func TestBilling_ComposeBill_ValidationErrors(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	var verr *core.ValidationError

	_, err := billingSvc.ComposeBill(ctx, nil, nil, decimal.Zero)
	if !errors.As(err, &verr) {
		t.Errorf("empty item list: expected ValidationError, got %v", err)
	}

	_, err = billingSvc.ComposeBill(ctx, []core.BillItemInput{
		{StockID: intPtr(5), Quantity: 1},
	}, nil, decimal.NewFromInt(150))
	if !errors.As(err, &verr) {
		t.Errorf("discount over 100: expected ValidationError, got %v", err)
	}

	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("validation failures must not touch stock, got %d", got)
	}
}

func TestBilling_StageConfirmLifecycle(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	staged, err := billingSvc.StageItems(ctx, []core.BillItemInput{
		{StockID: intPtr(5), Quantity: 2},
		{Service: strPtr("consultation"), Price: decPtr(decimal.NewFromInt(100)), Quantity: 1},
	})
	if err != nil {
		t.Fatalf("StageItems failed: %v", err)
	}
	if len(staged) != 2 {
		t.Fatalf("expected 2 staged items, got %d", len(staged))
	}
	if staged[0].Status != core.BillItemPending {
		t.Errorf("expected staged items pending, got %s", staged[0].Status)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 8 {
		t.Errorf("staging must reserve stock, got %d", got)
	}

	pending, err := billingSvc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(pending))
	}
	if pending[0].Name != "Paracetamol" {
		t.Errorf("expected drug name resolved on pending item, got %q", pending[0].Name)
	}
	if pending[1].Name != "consultation" {
		t.Errorf("expected service label as pending item name, got %q", pending[1].Name)
	}

	// 2*50 + 100 = 200, minus 10% = 180.
	billID, err := billingSvc.Confirm(ctx, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	var total decimal.Decimal
	if err := billing.QueryRow(ctx,
		"SELECT total_amount FROM bills WHERE id = $1", billID,
	).Scan(&total); err != nil {
		t.Fatalf("Failed to read bill: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected confirmed total 180, got %s", total)
	}

	var remaining int
	if err := billing.QueryRow(ctx,
		"SELECT COUNT(*) FROM bill_items WHERE status = 'pending'",
	).Scan(&remaining); err != nil {
		t.Fatalf("Failed to count pending items: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected no pending items after confirmation, got %d", remaining)
	}
}

func TestBilling_Confirm_NothingPending(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	_, err := billingSvc.Confirm(ctx, decimal.Zero)
	if !errors.Is(err, core.ErrNothingToConfirm) {
		t.Fatalf("expected ErrNothingToConfirm, got %v", err)
	}

	var bills int
	if err := billing.QueryRow(ctx, "SELECT COUNT(*) FROM bills").Scan(&bills); err != nil {
		t.Fatalf("Failed to count bills: %v", err)
	}
	if bills != 0 {
		t.Errorf("empty confirmation must not create a bill, got %d", bills)
	}
}

func TestBilling_RemoveItem_ReleasesStock(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	staged, err := billingSvc.StageItems(ctx, []core.BillItemInput{
		{StockID: intPtr(5), Quantity: 3},
	})
	if err != nil {
		t.Fatalf("StageItems failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 7 {
		t.Fatalf("expected amount 7 after staging, got %d", got)
	}

	if err := billingSvc.RemoveItem(ctx, staged[0].ID); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("expected stock restored to 10 after removal, got %d", got)
	}

	pending, err := billingSvc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending items after removal, got %d", len(pending))
	}
}

func TestBilling_RemoveItem_NotFound(t *testing.T) {
	billing, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)
	billingSvc := core.NewBillingService(billing, stockSvc)

	if err := billingSvc.RemoveItem(ctx, 12345); !errors.Is(err, core.ErrBillItemNotFound) {
		t.Errorf("expected ErrBillItemNotFound, got %v", err)
	}
}

package core_test

import (
	"errors"
	"testing"
	"time"

	"clinic-billing/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestStock_ReserveBatch(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	token := uuid.New()
	prices, err := stockSvc.ReserveBatch(ctx, token, []core.StockReservation{
		{StockID: 5, Quantity: 2},
		{StockID: 7, Quantity: 4},
	})
	if err != nil {
		t.Fatalf("ReserveBatch failed: %v", err)
	}

	if !prices[5].Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected unit price 50 for stock 5, got %s", prices[5])
	}
	if !prices[7].Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected unit price 120 for stock 7, got %s", prices[7])
	}

	if got := stockAmount(t, ctx, inventory, 5); got != 8 {
		t.Errorf("expected stock 5 amount 8 after reservation, got %d", got)
	}
	if got := stockAmount(t, ctx, inventory, 7); got != 16 {
		t.Errorf("expected stock 7 amount 16 after reservation, got %d", got)
	}

	states := reservationStates(t, ctx, inventory, 5)
	if len(states) != 1 || states[0] != "reserved" {
		t.Errorf("expected one 'reserved' log row for stock 5, got %v", states)
	}
}

func TestStock_ReserveBatch_InsufficientStockFailsWholeBatch(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	// Stock 6 holds 3 units; asking for 4 must fail and roll back the
	// already-processed decrement of stock 5 in the same batch.
	_, err := stockSvc.ReserveBatch(ctx, uuid.New(), []core.StockReservation{
		{StockID: 5, Quantity: 2},
		{StockID: 6, Quantity: 4},
	})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("expected stock 5 untouched at 10, got %d", got)
	}
	if got := stockAmount(t, ctx, inventory, 6); got != 3 {
		t.Errorf("expected stock 6 untouched at 3, got %d", got)
	}
	if states := reservationStates(t, ctx, inventory, 5); len(states) != 0 {
		t.Errorf("expected no committed log rows after rollback, got %v", states)
	}
}

func TestStock_ReserveBatch_UnknownStock(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	_, err := stockSvc.ReserveBatch(ctx, uuid.New(), []core.StockReservation{
		{StockID: 999, Quantity: 1},
	})
	if !errors.Is(err, core.ErrStockNotFound) {
		t.Fatalf("expected ErrStockNotFound, got %v", err)
	}
}

func TestStock_ReserveThenReleaseRoundTrip(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	token := uuid.New()
	if _, err := stockSvc.ReserveBatch(ctx, token, []core.StockReservation{
		{StockID: 5, Quantity: 3},
	}); err != nil {
		t.Fatalf("ReserveBatch failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 7 {
		t.Fatalf("expected amount 7 after reservation, got %d", got)
	}

	if err := stockSvc.ReleaseBatch(ctx, token); err != nil {
		t.Fatalf("ReleaseBatch failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("expected amount restored to 10 after release, got %d", got)
	}

	states := reservationStates(t, ctx, inventory, 5)
	if len(states) != 1 || states[0] != "released" {
		t.Errorf("expected log row marked 'released', got %v", states)
	}

	// A second release of the same token must be a no-op.
	if err := stockSvc.ReleaseBatch(ctx, token); err != nil {
		t.Fatalf("repeated ReleaseBatch failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 10 {
		t.Errorf("repeated release must not double-restore, got %d", got)
	}
}

func TestStock_MarkConsumed(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	token := uuid.New()
	if _, err := stockSvc.ReserveBatch(ctx, token, []core.StockReservation{
		{StockID: 7, Quantity: 1},
	}); err != nil {
		t.Fatalf("ReserveBatch failed: %v", err)
	}

	if err := stockSvc.MarkConsumed(ctx, token); err != nil {
		t.Fatalf("MarkConsumed failed: %v", err)
	}
	states := reservationStates(t, ctx, inventory, 7)
	if len(states) != 1 || states[0] != "consumed" {
		t.Errorf("expected log row marked 'consumed', got %v", states)
	}

	// Consumed rows are out of reach for ReleaseBatch.
	if err := stockSvc.ReleaseBatch(ctx, token); err != nil {
		t.Fatalf("ReleaseBatch failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 7); got != 19 {
		t.Errorf("release of consumed token must not restore stock, got %d", got)
	}
}

func TestStock_Release(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	if err := stockSvc.Release(ctx, 5, 2); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if got := stockAmount(t, ctx, inventory, 5); got != 12 {
		t.Errorf("expected amount 12 after release, got %d", got)
	}

	if err := stockSvc.Release(ctx, 999, 1); !errors.Is(err, core.ErrStockNotFound) {
		t.Errorf("expected ErrStockNotFound for unknown stock, got %v", err)
	}
}

func TestStock_DanglingReservations(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	// An old reserved row is dangling; a fresh one is within the grace period.
	oldToken := uuid.New()
	_, err := inventory.Exec(ctx, `
		INSERT INTO stock_reservations (token, stock_id, quantity, state, created_at)
		VALUES ($1, 5, 2, 'reserved', NOW() - INTERVAL '1 hour')
	`, oldToken)
	if err != nil {
		t.Fatalf("Failed to insert old reservation: %v", err)
	}
	if _, err := stockSvc.ReserveBatch(ctx, uuid.New(), []core.StockReservation{
		{StockID: 7, Quantity: 1},
	}); err != nil {
		t.Fatalf("ReserveBatch failed: %v", err)
	}

	dangling, err := stockSvc.DanglingReservations(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("DanglingReservations failed: %v", err)
	}
	if len(dangling) != 1 {
		t.Fatalf("expected exactly one dangling reservation, got %d", len(dangling))
	}
	if dangling[0].Token != oldToken || dangling[0].StockID != 5 {
		t.Errorf("unexpected dangling row: %+v", dangling[0])
	}
}

func TestStock_GetStocksByIDs(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	stocks, err := stockSvc.GetStocksByIDs(ctx, []int{5, 7, 999})
	if err != nil {
		t.Fatalf("GetStocksByIDs failed: %v", err)
	}
	if len(stocks) != 2 {
		t.Fatalf("expected 2 stocks, got %d", len(stocks))
	}
	if stocks[5].DrugName != "Paracetamol" {
		t.Errorf("expected drug name joined for stock 5, got %q", stocks[5].DrugName)
	}

	empty, err := stockSvc.GetStocksByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetStocksByIDs with empty id-set failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty map for empty id-set, got %d entries", len(empty))
	}
}

func TestStock_GetStocksByDrug(t *testing.T) {
	_, inventory, ctx := setupStores(t)
	stockSvc := core.NewStockService(inventory)

	stocks, err := stockSvc.GetStocksByDrug(ctx, 1)
	if err != nil {
		t.Fatalf("GetStocksByDrug failed: %v", err)
	}
	if len(stocks) != 2 {
		t.Errorf("expected 2 batches of drug 1, got %d", len(stocks))
	}

	if _, err := stockSvc.GetStocksByDrug(ctx, 999); !errors.Is(err, core.ErrDrugNotFound) {
		t.Errorf("expected ErrDrugNotFound for unknown drug, got %v", err)
	}
}

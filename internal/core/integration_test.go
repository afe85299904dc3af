package core_test

import (
	"context"
	"os"
	"testing"

	"clinic-billing/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// setupStores connects to the two dedicated TEST databases, applies both
// schemas, and wipes and reseeds the tables. Set TEST_BILLING_DATABASE_URL
// and TEST_INVENTORY_DATABASE_URL in your .env or environment to run
// integration tests.
func setupStores(t *testing.T) (billing, inventory *pgxpool.Pool, ctx context.Context) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	billingURL := os.Getenv("TEST_BILLING_DATABASE_URL")
	inventoryURL := os.Getenv("TEST_INVENTORY_DATABASE_URL")
	if billingURL == "" || inventoryURL == "" {
		t.Skip("TEST_BILLING_DATABASE_URL / TEST_INVENTORY_DATABASE_URL not set — skipping integration test to protect live databases")
	}

	ctx = context.Background()

	billing, err := pgxpool.New(ctx, billingURL)
	if err != nil {
		t.Fatalf("Failed to connect to billing test database: %v", err)
	}
	t.Cleanup(billing.Close)

	inventory, err = pgxpool.New(ctx, inventoryURL)
	if err != nil {
		t.Fatalf("Failed to connect to inventory test database: %v", err)
	}
	t.Cleanup(inventory.Close)

	if err := db.BootstrapBilling(ctx, billing); err != nil {
		t.Fatalf("Failed to apply billing schema: %v", err)
	}
	if err := db.BootstrapInventory(ctx, inventory); err != nil {
		t.Fatalf("Failed to apply inventory schema: %v", err)
	}

	_, err = billing.Exec(ctx, `
		TRUNCATE TABLE bill_items, bills, expenses, users RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean billing test database: %v", err)
	}

	_, err = inventory.Exec(ctx, `
		TRUNCATE TABLE stock_reservations, stocks, drugs RESTART IDENTITY CASCADE;

		INSERT INTO drugs (id, name, drug_type, unit_type) VALUES
		(1, 'Paracetamol', 'tablet', 'strip'),
		(2, 'Amoxicillin', 'capsule', 'box');

		INSERT INTO stocks (id, drug_id, unit_price, amount) VALUES
		(5, 1, 50, 10),
		(6, 1, 55, 3),
		(7, 2, 120, 20);

		SELECT setval(pg_get_serial_sequence('drugs', 'id'), 10);
		SELECT setval(pg_get_serial_sequence('stocks', 'id'), 10);
	`)
	if err != nil {
		t.Fatalf("Failed to seed inventory test database: %v", err)
	}

	return billing, inventory, ctx
}

// stockAmount fetches the current amount of one stock row.
func stockAmount(t *testing.T, ctx context.Context, inventory *pgxpool.Pool, stockID int) int {
	t.Helper()
	var amount int
	if err := inventory.QueryRow(ctx,
		"SELECT amount FROM stocks WHERE id = $1", stockID,
	).Scan(&amount); err != nil {
		t.Fatalf("Failed to read stock %d amount: %v", stockID, err)
	}
	return amount
}

// reservationStates returns the state of every reservation-log row for a stock.
func reservationStates(t *testing.T, ctx context.Context, inventory *pgxpool.Pool, stockID int) []string {
	t.Helper()
	rows, err := inventory.Query(ctx,
		"SELECT state FROM stock_reservations WHERE stock_id = $1 ORDER BY id", stockID,
	)
	if err != nil {
		t.Fatalf("Failed to query reservation log: %v", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("Failed to scan reservation state: %v", err)
		}
		states = append(states, s)
	}
	return states
}

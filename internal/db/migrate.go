package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// BootstrapBilling applies the billing store schema. All statements are
// idempotent (CREATE TABLE IF NOT EXISTS), so this is safe to run on every
// startup.
func BootstrapBilling(ctx context.Context, pool *pgxpool.Pool) error {
	return applySchema(ctx, pool, "schema/billing.sql")
}

// BootstrapInventory applies the inventory store schema.
func BootstrapInventory(ctx context.Context, pool *pgxpool.Pool) error {
	return applySchema(ctx, pool, "schema/inventory.sql")
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	sql, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read embedded schema %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply schema %s: %w", name, err)
	}
	return nil
}

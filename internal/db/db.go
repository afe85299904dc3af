// Package db owns the connection pools for the two independent stores:
// the billing store (bills, bill items, expenses, users) and the inventory
// store (drug catalog, stock levels, reservation log). The stores share no
// transaction coordinator; callers receive one pool per store and are
// responsible for their own transaction scopes.
package db

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewBillingPool connects to the billing store using BILLING_DATABASE_URL.
func NewBillingPool(ctx context.Context) (*pgxpool.Pool, error) {
	return newPool(ctx, "BILLING_DATABASE_URL")
}

// NewInventoryPool connects to the inventory store using INVENTORY_DATABASE_URL.
func NewInventoryPool(ctx context.Context) (*pgxpool.Pool, error) {
	return newPool(ctx, "INVENTORY_DATABASE_URL")
}

func newPool(ctx context.Context, envVar string) (*pgxpool.Pool, error) {
	connStr := os.Getenv(envVar)
	if connStr == "" {
		return nil, fmt.Errorf("%s environment variable not set", envVar)
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", envVar, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"clinic-billing/internal/adapters/web"
	"clinic-billing/internal/core"
	"clinic-billing/internal/db"
	"clinic-billing/pkg/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	ctx := context.Background()

	billingPool, err := db.NewBillingPool(ctx)
	if err != nil {
		slog.Error("billing store", "error", err)
		os.Exit(1)
	}
	defer billingPool.Close()

	inventoryPool, err := db.NewInventoryPool(ctx)
	if err != nil {
		slog.Error("inventory store", "error", err)
		os.Exit(1)
	}
	defer inventoryPool.Close()

	if err := db.BootstrapBilling(ctx, billingPool); err != nil {
		slog.Error("billing schema", "error", err)
		os.Exit(1)
	}
	if err := db.BootstrapInventory(ctx, inventoryPool); err != nil {
		slog.Error("inventory schema", "error", err)
		os.Exit(1)
	}

	stockService := core.NewStockService(inventoryPool)
	billingService := core.NewBillingService(billingPool, stockService)
	reportingService := core.NewReportingService(billingPool, stockService)
	expenseService := core.NewExpenseService(billingPool)
	userService := core.NewUserService(billingPool)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")

	handler := web.NewHandler(
		billingService,
		stockService,
		reportingService,
		expenseService,
		userService,
		healthCheck(billingPool, inventoryPool),
		allowedOrigins,
		jwtSecret,
	)

	slog.Info("server starting", "port", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
}

// healthCheck pings both stores; either failing marks the service unhealthy.
func healthCheck(billing, inventory *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := billing.Ping(ctx); err != nil {
			return err
		}
		return inventory.Ping(ctx)
	}
}

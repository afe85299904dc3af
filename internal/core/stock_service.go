package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockReservation is one requested decrement within a reservation batch.
type StockReservation struct {
	StockID  int
	Quantity int
}

// StockService is the Stock Ledger: the authoritative interface to drug
// stock quantities in the inventory store. Reservations decrement amounts,
// releases restore them; the non-negativity invariant is enforced under a
// row lock so concurrent reservations against one stock id serialize.
type StockService interface {
	GetStock(ctx context.Context, stockID int) (*Stock, error)
	GetStocksByDrug(ctx context.Context, drugID int) ([]Stock, error)
	ListStocks(ctx context.Context) ([]Stock, error)
	// GetStocksByIDs fetches stock rows (joined with drug names) for an
	// id-set, for the application-side merge with billing-store rows.
	GetStocksByIDs(ctx context.Context, ids []int) (map[int]Stock, error)

	// ReserveBatch decrements each requested stock amount and writes one
	// reservation-log row per request, all in a single transaction. Returns
	// the current unit price per stock id for pricing. Fails the whole batch
	// with ErrStockNotFound or ErrInsufficientStock without decrementing
	// anything if any single request cannot be satisfied.
	ReserveBatch(ctx context.Context, token uuid.UUID, reqs []StockReservation) (map[int]decimal.Decimal, error)

	// Release increments a stock amount — the compensating action for a
	// removed pending item.
	Release(ctx context.Context, stockID, quantity int) error

	// ReleaseBatch restores every still-reserved quantity recorded under
	// token and marks the log rows released. Idempotent: already-released
	// or consumed rows are skipped.
	ReleaseBatch(ctx context.Context, token uuid.UUID) error

	// MarkConsumed flips a token's reserved log rows to consumed after the
	// billing-store write has committed.
	MarkConsumed(ctx context.Context, token uuid.UUID) error

	// DanglingReservations lists log rows still 'reserved' after the grace
	// period — reservations whose billing-store counterpart may never have
	// committed. Surfaced for human reconciliation.
	DanglingReservations(ctx context.Context, olderThan time.Duration) ([]Reservation, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

// NewStockService constructs a StockService over the inventory store pool.
func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

const stockSelect = `
	SELECT s.id, s.drug_id, d.name, s.unit_price, s.amount, s.expired
	FROM stocks s
	JOIN drugs d ON d.id = s.drug_id
`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.ID, &s.DrugID, &s.DrugName, &s.UnitPrice, &s.Amount, &s.Expired)
	return s, err
}

func (s *stockService) GetStock(ctx context.Context, stockID int) (*Stock, error) {
	st, err := scanStock(s.pool.QueryRow(ctx, stockSelect+"WHERE s.id = $1", stockID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrStockNotFound, stockID)
		}
		return nil, fmt.Errorf("failed to fetch stock %d: %w", stockID, err)
	}
	return &st, nil
}

func (s *stockService) GetStocksByDrug(ctx context.Context, drugID int) ([]Stock, error) {
	stocks, err := s.queryStocks(ctx, stockSelect+"WHERE s.drug_id = $1 ORDER BY s.id", drugID)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrDrugNotFound, drugID)
	}
	return stocks, nil
}

func (s *stockService) ListStocks(ctx context.Context) ([]Stock, error) {
	return s.queryStocks(ctx, stockSelect+"ORDER BY d.name, s.id")
}

func (s *stockService) GetStocksByIDs(ctx context.Context, ids []int) (map[int]Stock, error) {
	if len(ids) == 0 {
		return map[int]Stock{}, nil
	}
	stocks, err := s.queryStocks(ctx, stockSelect+"WHERE s.id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	return IndexBy(stocks, func(st Stock) int { return st.ID }), nil
}

func (s *stockService) queryStocks(ctx context.Context, query string, args ...any) ([]Stock, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// ReserveBatch locks each stock row before the read-check-write so two
// concurrent reservations against the same stock id serialize instead of
// both reading a sufficient amount and overselling.
func (s *stockService) ReserveBatch(ctx context.Context, token uuid.UUID, reqs []StockReservation) (map[int]decimal.Decimal, error) {
	if len(reqs) == 0 {
		return map[int]decimal.Decimal{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reservation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	prices := make(map[int]decimal.Decimal, len(reqs))
	for _, req := range reqs {
		var amount int
		var unitPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT amount, unit_price FROM stocks WHERE id = $1 FOR UPDATE",
			req.StockID,
		).Scan(&amount, &unitPrice)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrStockNotFound, req.StockID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock stock %d: %w", req.StockID, err)
		}

		if amount < req.Quantity {
			return nil, fmt.Errorf("%w: stock %d has %d, need %d",
				ErrInsufficientStock, req.StockID, amount, req.Quantity)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE stocks SET amount = amount - $1 WHERE id = $2",
			req.Quantity, req.StockID,
		); err != nil {
			return nil, fmt.Errorf("failed to decrement stock %d: %w", req.StockID, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_reservations (token, stock_id, quantity, state)
			VALUES ($1, $2, $3, 'reserved')
		`, token, req.StockID, req.Quantity); err != nil {
			return nil, fmt.Errorf("failed to log reservation for stock %d: %w", req.StockID, err)
		}

		prices[req.StockID] = unitPrice
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reservation batch: %w", err)
	}
	return prices, nil
}

func (s *stockService) Release(ctx context.Context, stockID, quantity int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE stocks SET amount = amount + $1 WHERE id = $2",
		quantity, stockID,
	)
	if err != nil {
		return fmt.Errorf("failed to release stock %d: %w", stockID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrStockNotFound, stockID)
	}
	return nil
}

func (s *stockService) ReleaseBatch(ctx context.Context, token uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin release transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, stock_id, quantity
		FROM stock_reservations
		WHERE token = $1 AND state = 'reserved'
		FOR UPDATE
	`, token)
	if err != nil {
		return fmt.Errorf("failed to fetch reservations for token %s: %w", token, err)
	}

	type row struct {
		id, stockID, quantity int
	}
	var reservations []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.stockID, &r.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan reservation row: %w", err)
		}
		reservations = append(reservations, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating reservation rows: %w", err)
	}

	for _, r := range reservations {
		if _, err := tx.Exec(ctx,
			"UPDATE stocks SET amount = amount + $1 WHERE id = $2",
			r.quantity, r.stockID,
		); err != nil {
			return fmt.Errorf("failed to restore stock %d: %w", r.stockID, err)
		}
		if _, err := tx.Exec(ctx,
			"UPDATE stock_reservations SET state = 'released' WHERE id = $1",
			r.id,
		); err != nil {
			return fmt.Errorf("failed to mark reservation %d released: %w", r.id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reservation release: %w", err)
	}
	return nil
}

func (s *stockService) MarkConsumed(ctx context.Context, token uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE stock_reservations SET state = 'consumed' WHERE token = $1 AND state = 'reserved'",
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reservations consumed for token %s: %w", token, err)
	}
	return nil
}

func (s *stockService) DanglingReservations(ctx context.Context, olderThan time.Duration) ([]Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, token, stock_id, quantity, state, created_at
		FROM stock_reservations
		WHERE state = 'reserved' AND created_at < NOW() - $1::interval
		ORDER BY created_at
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to query dangling reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.Token, &r.StockID, &r.Quantity, &r.State, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExpenseService is single-table CRUD on the billing store. Expenses feed
// the monthly dashboard.
type ExpenseService interface {
	CreateExpense(ctx context.Context, name string, amount decimal.Decimal) (*Expense, error)
	ListExpenses(ctx context.Context) ([]Expense, error)
	UpdateExpense(ctx context.Context, id int, name string, amount decimal.Decimal) (*Expense, error)
	DeleteExpense(ctx context.Context, id int) error
}

type expenseService struct {
	pool *pgxpool.Pool
}

// NewExpenseService constructs an ExpenseService over the billing store pool.
func NewExpenseService(pool *pgxpool.Pool) ExpenseService {
	return &expenseService{pool: pool}
}

func validateExpense(name string, amount decimal.Decimal) error {
	if name == "" {
		return Validationf("expense name is required")
	}
	if amount.IsNegative() || amount.IsZero() {
		return Validationf("expense amount must be positive, got %s", amount)
	}
	return nil
}

func (s *expenseService) CreateExpense(ctx context.Context, name string, amount decimal.Decimal) (*Expense, error) {
	if err := validateExpense(name, amount); err != nil {
		return nil, err
	}

	var e Expense
	err := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (name, amount)
		VALUES ($1, $2)
		RETURNING id, name, amount, created_at
	`, name, amount).Scan(&e.ID, &e.Name, &e.Amount, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return &e, nil
}

func (s *expenseService) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, amount, created_at FROM expenses ORDER BY id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *expenseService) UpdateExpense(ctx context.Context, id int, name string, amount decimal.Decimal) (*Expense, error) {
	if err := validateExpense(name, amount); err != nil {
		return nil, err
	}

	var e Expense
	err := s.pool.QueryRow(ctx, `
		UPDATE expenses SET name = $1, amount = $2
		WHERE id = $3
		RETURNING id, name, amount, created_at
	`, name, amount, id).Scan(&e.ID, &e.Name, &e.Amount, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrExpenseNotFound, id)
		}
		return nil, fmt.Errorf("failed to update expense %d: %w", id, err)
	}
	return &e, nil
}

func (s *expenseService) DeleteExpense(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrExpenseNotFound, id)
	}
	return nil
}

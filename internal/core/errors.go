package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the billing/stock taxonomy. Services wrap these with
// fmt.Errorf("...: %w", err) so callers can classify with errors.Is while
// still surfacing the specific message.
var (
	// ErrStockNotFound is returned when a reservation names an unknown stock id.
	ErrStockNotFound = errors.New("stock not found")

	// ErrInsufficientStock is returned when a reservation would drive a
	// stock amount below zero. The amount is never decremented in that case.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNothingToConfirm is returned by Confirm when no pending bill items exist.
	ErrNothingToConfirm = errors.New("no pending bill items to confirm")

	// ErrBillNotFound is returned when a bill id does not exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrBillItemNotFound is returned when a bill item id does not exist
	// or is no longer pending.
	ErrBillItemNotFound = errors.New("bill item not found")

	// ErrDrugNotFound is returned when a drug id has no stock batches.
	ErrDrugNotFound = errors.New("drug not found")

	// ErrExpenseNotFound is returned when an expense id does not exist.
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrInvalidCredentials is returned on a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError reports invalid input caught before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsStockError reports whether err belongs to the stock-reservation branch
// of the taxonomy (unknown stock id or insufficient quantity).
func IsStockError(err error) bool {
	return errors.Is(err, ErrStockNotFound) || errors.Is(err, ErrInsufficientStock)
}

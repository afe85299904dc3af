package core

import "github.com/shopspring/decimal"

// ValidateItems checks an incoming item list before any write. An empty
// list, a line that is neither a stock sale nor a service, a line that is
// both, a non-positive quantity, or a service line without a price all fail
// with a ValidationError.
func ValidateItems(items []BillItemInput) error {
	if len(items) == 0 {
		return Validationf("bill must have at least one item")
	}
	for i, item := range items {
		switch {
		case item.StockID == nil && item.Service == nil:
			return Validationf("item %d: either stock_id or service is required", i+1)
		case item.StockID != nil && item.Service != nil:
			return Validationf("item %d: stock_id and service are mutually exclusive", i+1)
		case item.Quantity <= 0:
			return Validationf("item %d: quantity must be positive, got %d", i+1, item.Quantity)
		case item.Service != nil && (item.Price == nil || item.Price.IsNegative()):
			return Validationf("item %d: service %q requires a non-negative price", i+1, *item.Service)
		case item.CustomPrice != nil && item.CustomPrice.IsNegative():
			return Validationf("item %d: custom price cannot be negative", i+1)
		}
	}
	return nil
}

// ValidateDiscount checks a discount percentage.
func ValidateDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return Validationf("discount must be between 0 and 100, got %s", discount)
	}
	return nil
}

// ResolveUnitPrice picks the effective unit price for one item: the service
// price for service lines, otherwise the custom price when set, otherwise
// the catalog price returned by the Stock Ledger.
func ResolveUnitPrice(item BillItemInput, catalogPrice decimal.Decimal) decimal.Decimal {
	if item.Service != nil {
		return *item.Price
	}
	if item.CustomPrice != nil {
		return *item.CustomPrice
	}
	return catalogPrice
}

// ApplyDiscount reduces total by a percentage: total - total*discount/100.
func ApplyDiscount(total, discount decimal.Decimal) decimal.Decimal {
	return total.Sub(total.Mul(discount).Div(decimal.NewFromInt(100)))
}

package core

import "github.com/shopspring/decimal"

// Application-side merge helpers. No cross-store SQL join is possible
// between the billing and inventory stores, so reporting fetches ids from
// one store, fetches matching rows from the other by id-set, indexes them,
// and zips in memory.

// IndexBy builds a lookup map from items using the given key extractor.
// Later items win on duplicate keys.
func IndexBy[K comparable, V any](items []V, key func(V) K) map[K]V {
	m := make(map[K]V, len(items))
	for _, item := range items {
		m[key(item)] = item
	}
	return m
}

// UniqueInts returns the distinct values of ids, preserving first-seen order.
func UniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CollectStockIDs extracts the distinct stock ids referenced by catalog
// items, skipping service lines.
func CollectStockIDs(items []BillItem) []int {
	var ids []int
	for _, item := range items {
		if item.StockID != nil {
			ids = append(ids, *item.StockID)
		}
	}
	return UniqueInts(ids)
}

// ResolveItemNames fills the display Name and UnitPrice of each item from
// the stock index; service items surface their service label instead.
func ResolveItemNames(items []BillItem, stocks map[int]Stock) {
	for i := range items {
		switch {
		case items[i].Service != nil:
			items[i].Name = *items[i].Service
			if items[i].Quantity > 0 {
				items[i].UnitPrice = items[i].Subtotal.Div(decimal.NewFromInt(int64(items[i].Quantity)))
			}
		case items[i].StockID != nil:
			if s, ok := stocks[*items[i].StockID]; ok {
				items[i].Name = s.DrugName
				items[i].UnitPrice = s.UnitPrice
			}
		}
	}
}

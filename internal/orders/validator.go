package orders

import (
	"context"
	"sort"
)

// ItemInput is one requested line item of a candidate order.
type ItemInput struct {
	ProductID     string
	Qty           int
	PriceCents    int
	SelectedColor string
	SelectedSize  string
}

// AggregateDemand sums quantities across line items per product.
// Duplicate lines for the same product are legal and must be checked as
// one aggregated quantity, never line by line: two small lines can
// together exceed stock.
//
// The result is sorted by product id; every stock lock in a transaction
// is taken in this order.
func AggregateDemand(items []ItemInput) ([]ItemQty, error) {
	if len(items) == 0 {
		return nil, invalidf("order has no items")
	}
	byProduct := map[string]int{}
	for i, it := range items {
		if it.ProductID == "" {
			return nil, invalidf("item %d: missing product id", i)
		}
		if it.Qty <= 0 {
			return nil, invalidf("item %d: quantity must be positive, got %d", i, it.Qty)
		}
		byProduct[it.ProductID] += it.Qty
	}

	demand := make([]ItemQty, 0, len(byProduct))
	for id, qty := range byProduct {
		demand = append(demand, ItemQty{ProductID: id, Qty: qty})
	}
	sort.Slice(demand, func(i, j int) bool { return demand[i].ProductID < demand[j].ProductID })
	return demand, nil
}

// CheckStock verifies every product in the demand exists and, for
// physical products, that the aggregated quantity fits current stock.
// Read-only; the authoritative check runs again under row locks inside
// the creation transaction.
func CheckStock(ctx context.Context, r ProductReader, demand []ItemQty) error {
	for _, d := range demand {
		p, err := r.GetProduct(ctx, d.ProductID)
		if err != nil {
			return err
		}
		if !p.Physical() {
			continue
		}
		if d.Qty > p.Stock {
			return &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   d.Qty,
				Available:   p.Stock,
			}
		}
	}
	return nil
}

// checkProduct is the in-transaction variant of the CheckStock body,
// applied to a product already held under its row lock.
func checkProduct(p Product, qty int) error {
	if !p.Physical() {
		return nil
	}
	if qty > p.Stock {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   qty,
			Available:   p.Stock,
		}
	}
	return nil
}

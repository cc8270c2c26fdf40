package orders

import (
	"errors"
	"fmt"
)

var ErrOrderNotFound = errors.New("order not found")

// ProductNotFoundError: a line item references a product id that does
// not resolve.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InsufficientStockError carries the offending product's identity so the
// caller can render a precise message.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (%s): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// InvalidOrderDataError: the order payload failed boundary validation
// (missing items, non-positive quantity, malformed totals).
type InvalidOrderDataError struct {
	Reason string
}

func (e *InvalidOrderDataError) Error() string {
	return "invalid order data: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &InvalidOrderDataError{Reason: fmt.Sprintf(format, args...)}
}

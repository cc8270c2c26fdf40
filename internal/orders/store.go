package orders

import (
	"context"
	"errors"
)

// ErrStockConflict is returned by Tx.DecrementStock when the decrement
// would drive stock negative. The conditional update is the enforcement
// point for the non-negativity invariant; callers translate this into an
// InsufficientStockError with the product's identity.
var ErrStockConflict = errors.New("stock decrement would go negative")

// ProductReader is the read-only view the intake validator uses for its
// pre-check outside any lock.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Tx is the set of operations available inside one atomic unit. Both the
// creation transaction and the status transition engine cross the
// order/product ownership boundary only through a Tx.
type Tx interface {
	// LockProduct loads a product and holds its row lock until the
	// transaction ends.
	LockProduct(ctx context.Context, id string) (Product, error)
	// DecrementStock applies a single conditional decrement; it fails
	// with ErrStockConflict instead of flooring at zero.
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItems(ctx context.Context, items []OrderItem) error
	// LockOrder loads an order under its row lock; ErrOrderNotFound if
	// the id does not resolve.
	LockOrder(ctx context.Context, id string) (Order, error)
	// UpdateOrder persists status, stockDeducted and payment metadata.
	UpdateOrder(ctx context.Context, o *Order) error
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
}

// Store is the injected persistence boundary. RunTx runs fn inside one
// transaction; any error from fn rolls the whole unit back.
type Store interface {
	ProductReader
	RunTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (Order, []OrderItem, error)
	CountOrdersByStatus(ctx context.Context, st Status) (int, error)
}

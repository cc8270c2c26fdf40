package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on postgres. Product rows are locked with
// SELECT ... FOR UPDATE; the decrement itself is conditional on
// stock >= qty, so an aborted check can never leave stock negative.
type PGStore struct{ DB *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

var _ Store = (*PGStore)(nil)

func (s *PGStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const productCols = `id, sku, name, product_type, stock, price_cents, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Type, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PGStore) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &ProductNotFoundError{ProductID: id}
	}
	return p, err
}

func (s *PGStore) GetOrder(ctx context.Context, id string) (Order, []OrderItem, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id).Scan(orderFields(&o)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}

	rows, err := s.DB.Query(ctx, `SELECT `+itemCols+` FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (s *PGStore) CountOrdersByStatus(ctx context.Context, st Status) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status=$1`, string(st)).Scan(&n)
	return n, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &ProductNotFoundError{ProductID: id}
	}
	return p, err
}

func (t *pgTx) DecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrStockConflict
	}
	return nil
}

func (t *pgTx) IncrementStock(ctx context.Context, id string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &ProductNotFoundError{ProductID: id}
	}
	return nil
}

const orderCols = `id, user_id, status, stock_deducted,
	total_cents, discount_cents, tax_cents, delivery_charge_cents, extra_delivery_charge_cents, net_total_cents,
	customer_name, phone, email, shipping_address,
	payment_method, payment_info, coupon_code, created_at, updated_at`

func orderFields(o *Order) []any {
	return []any{
		&o.ID, &o.UserID, &o.Status, &o.StockDeducted,
		&o.TotalCents, &o.DiscountCents, &o.TaxCents, &o.DeliveryChargeCents, &o.ExtraDeliveryChargeCents, &o.NetTotalCents,
		&o.CustomerName, &o.Phone, &o.Email, &o.ShippingAddress,
		&o.PaymentMethod, &o.PaymentInfo, &o.CouponCode, &o.CreatedAt, &o.UpdatedAt,
	}
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(`+orderCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		o.ID, o.UserID, string(o.Status), o.StockDeducted,
		o.TotalCents, o.DiscountCents, o.TaxCents, o.DeliveryChargeCents, o.ExtraDeliveryChargeCents, o.NetTotalCents,
		o.CustomerName, o.Phone, o.Email, o.ShippingAddress,
		o.PaymentMethod, o.PaymentInfo, o.CouponCode, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

const itemCols = `id, order_id, product_id, qty, price_cents, selected_color, selected_size`

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents, &it.SelectedColor, &it.SelectedSize); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertOrderItems(ctx context.Context, items []OrderItem) error {
	for _, it := range items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(`+itemCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.ProductID, it.Qty, it.PriceCents, it.SelectedColor, it.SelectedSize,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	err := t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(orderFields(&o)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, stock_deducted=$3, payment_method=$4, payment_info=$5, updated_at=$6
		WHERE id=$1`,
		o.ID, string(o.Status), o.StockDeducted, o.PaymentMethod, o.PaymentInfo, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+itemCols+` FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

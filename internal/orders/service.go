package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier receives order lifecycle events after commit. Calls are
// fire-and-forget from the service's perspective: a delivery failure is
// logged and never undoes order or inventory state.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order, items []OrderItem) error
	StatusChanged(ctx context.Context, o Order, previous Status) error
}

type CreateOrderInput struct {
	UserID string
	Items  []ItemInput

	TotalCents               int
	DiscountCents            int
	TaxCents                 int
	DeliveryChargeCents      int
	ExtraDeliveryChargeCents int
	NetTotalCents            int

	CustomerName    string
	Phone           string
	Email           string
	ShippingAddress string

	PaymentMethod string
	PaymentInfo   string
	CouponCode    string
}

type Service struct {
	Store    Store
	Notifier Notifier
	Log      *zap.Logger

	// NotifyTimeout bounds the post-commit notification call.
	NotifyTimeout time.Duration
}

func NewService(store Store, n Notifier, log *zap.Logger) *Service {
	return &Service{Store: store, Notifier: n, Log: log, NotifyTimeout: 5 * time.Second}
}

// CreateOrder validates the candidate order and creates it in one atomic
// unit: order row, item rows and the stock decrement for every physical
// line item all commit or all roll back. Stock sufficiency is
// re-evaluated under the product row locks, so two concurrent orders for
// the same product serialize and can never jointly oversell.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, []OrderItem, error) {
	if err := validateInput(in); err != nil {
		return Order{}, nil, err
	}
	demand, err := AggregateDemand(in.Items)
	if err != nil {
		return Order{}, nil, err
	}
	// Optimistic pre-check outside the lock; cheap rejection for
	// obviously oversold orders. The transaction below is authoritative.
	if err := CheckStock(ctx, s.Store, demand); err != nil {
		return Order{}, nil, err
	}

	now := time.Now().UTC()
	order := Order{
		ID:                       uuid.NewString(),
		UserID:                   in.UserID,
		Status:                   InitialStatus(in.PaymentMethod),
		StockDeducted:            true,
		TotalCents:               in.TotalCents,
		DiscountCents:            in.DiscountCents,
		TaxCents:                 in.TaxCents,
		DeliveryChargeCents:      in.DeliveryChargeCents,
		ExtraDeliveryChargeCents: in.ExtraDeliveryChargeCents,
		NetTotalCents:            in.NetTotalCents,
		CustomerName:             in.CustomerName,
		Phone:                    in.Phone,
		Email:                    in.Email,
		ShippingAddress:          in.ShippingAddress,
		PaymentMethod:            in.PaymentMethod,
		PaymentInfo:              in.PaymentInfo,
		CouponCode:               in.CouponCode,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	items := make([]OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, OrderItem{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			ProductID:     it.ProductID,
			Qty:           it.Qty,
			PriceCents:    it.PriceCents,
			SelectedColor: it.SelectedColor,
			SelectedSize:  it.SelectedSize,
		})
	}

	err = s.Store.RunTx(ctx, func(tx Tx) error {
		locked := make(map[string]Product, len(demand))
		for _, d := range demand {
			p, err := tx.LockProduct(ctx, d.ProductID)
			if err != nil {
				return err
			}
			if err := checkProduct(p, d.Qty); err != nil {
				return err
			}
			locked[d.ProductID] = p
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}
		for _, d := range demand {
			p := locked[d.ProductID]
			if !p.Physical() {
				continue
			}
			if err := tx.DecrementStock(ctx, d.ProductID, d.Qty); err != nil {
				if errors.Is(err, ErrStockConflict) {
					return &InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Requested:   d.Qty,
						Available:   p.Stock,
					}
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}

	s.dispatch(func(ctx context.Context) error {
		return s.Notifier.OrderCreated(ctx, order, items)
	}, "order created", order.ID)
	return order, items, nil
}

// UpdateStatus applies a status change plus its inventory consequence as
// one atomic unit. The stockDeducted flag is read under the order row
// lock, which makes deduction and restoration idempotent no matter how
// many times a status is re-applied:
//
//	rule A: new status active  && !stockDeducted -> deduct, flag true
//	rule B: new status CANCELLED && stockDeducted -> restore, flag false
//	rule C: anything else -> stock untouched
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus Status, paymentMethod, paymentInfo string) (Order, error) {
	if !knownStatuses[newStatus] {
		return Order{}, invalidf("unknown status %q", string(newStatus))
	}

	var updated Order
	var previous Status
	err := s.Store.RunTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		previous = o.Status

		items, err := tx.OrderItems(ctx, o.ID)
		if err != nil {
			return err
		}

		switch {
		case newStatus.Active() && !o.StockDeducted:
			if err := applyStock(ctx, tx, items, deduct); err != nil {
				return err
			}
			o.StockDeducted = true
		case newStatus == StatusCancelled && o.StockDeducted:
			if err := applyStock(ctx, tx, items, restore); err != nil {
				return err
			}
			o.StockDeducted = false
		}

		o.Status = newStatus
		if paymentMethod != "" {
			o.PaymentMethod = paymentMethod
		}
		if paymentInfo != "" {
			o.PaymentInfo = paymentInfo
		}
		o.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.dispatch(func(ctx context.Context) error {
		return s.Notifier.StatusChanged(ctx, updated, previous)
	}, "status changed", updated.ID)
	return updated, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (Order, []OrderItem, error) {
	return s.Store.GetOrder(ctx, id)
}

// PendingCount reports how many orders currently sit in PENDING.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.Store.CountOrdersByStatus(ctx, StatusPending)
}

type stockOp int

const (
	deduct stockOp = iota
	restore
)

// applyStock mutates stock for every physical product referenced by the
// order's items, aggregated per product and locked in sorted-id order.
func applyStock(ctx context.Context, tx Tx, items []OrderItem, op stockOp) error {
	demand := aggregateItems(items)
	for _, d := range demand {
		p, err := tx.LockProduct(ctx, d.ProductID)
		if err != nil {
			return err
		}
		if !p.Physical() {
			continue
		}
		switch op {
		case deduct:
			if err := checkProduct(p, d.Qty); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, d.ProductID, d.Qty); err != nil {
				if errors.Is(err, ErrStockConflict) {
					return &InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Requested:   d.Qty,
						Available:   p.Stock,
					}
				}
				return err
			}
		case restore:
			if err := tx.IncrementStock(ctx, d.ProductID, d.Qty); err != nil {
				return err
			}
		}
	}
	return nil
}

func aggregateItems(items []OrderItem) []ItemQty {
	byProduct := map[string]int{}
	for _, it := range items {
		byProduct[it.ProductID] += it.Qty
	}
	out := make([]ItemQty, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, ItemQty{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// dispatch runs a notification call detached from the request, after the
// transaction committed. Errors are logged and dropped: correctness never
// depends on the delivery channel.
func (s *Service) dispatch(fn func(ctx context.Context) error, event, orderID string) {
	if s.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.NotifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.Log.Warn("notification dispatch failed",
				zap.String("event", event),
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}()
}

func validateInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return invalidf("order has no items")
	}
	if in.TotalCents <= 0 {
		return invalidf("missing or non-positive total")
	}
	if in.NetTotalCents <= 0 {
		return invalidf("missing or non-positive net total")
	}
	if in.DiscountCents < 0 || in.TaxCents < 0 || in.DeliveryChargeCents < 0 || in.ExtraDeliveryChargeCents < 0 {
		return invalidf("negative charge field")
	}
	if in.ShippingAddress == "" {
		return invalidf("missing shipping address")
	}
	if in.PaymentMethod == "" {
		return invalidf("missing payment method")
	}
	for i, it := range in.Items {
		if it.PriceCents < 0 {
			return invalidf("item %d: negative price", i)
		}
	}
	return nil
}

package orders

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store used by tests and local runs. The
// store-wide mutex is held for a whole transaction, which serializes
// concurrent transactions the way row locks do in postgres; rollback is
// a snapshot restore.
type MemStore struct {
	mu       sync.Mutex
	products map[string]Product
	orders   map[string]Order
	items    map[string][]OrderItem // keyed by order id
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		products: map[string]Product{},
		orders:   map[string]Order{},
		items:    map[string][]OrderItem{},
	}
}

// SeedProduct inserts or replaces a product.
func (s *MemStore) SeedProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemStore) GetProduct(_ context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, &ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (s *MemStore) GetOrder(_ context.Context, id string) (Order, []OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, nil, ErrOrderNotFound
	}
	items := make([]OrderItem, len(s.items[id]))
	copy(items, s.items[id])
	return o, items, nil
}

func (s *MemStore) CountOrdersByStatus(_ context.Context, st Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if o.Status == st {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) RunTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	products map[string]Product
	orders   map[string]Order
	items    map[string][]OrderItem
}

func (s *MemStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products: make(map[string]Product, len(s.products)),
		orders:   make(map[string]Order, len(s.orders)),
		items:    make(map[string][]OrderItem, len(s.items)),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.items {
		cp := make([]OrderItem, len(v))
		copy(cp, v)
		snap.items[k] = cp
	}
	return snap
}

func (s *MemStore) restore(snap memSnapshot) {
	s.products = snap.products
	s.orders = snap.orders
	s.items = snap.items
}

// memTx operates directly on the store maps; the caller already holds
// the store mutex for the duration of the transaction.
type memTx struct{ s *MemStore }

func (t *memTx) LockProduct(_ context.Context, id string) (Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return Product{}, &ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (t *memTx) DecrementStock(_ context.Context, id string, qty int) error {
	p, ok := t.s.products[id]
	if !ok {
		return &ProductNotFoundError{ProductID: id}
	}
	if p.Stock < qty {
		return ErrStockConflict
	}
	p.Stock -= qty
	t.s.products[id] = p
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, id string, qty int) error {
	p, ok := t.s.products[id]
	if !ok {
		return &ProductNotFoundError{ProductID: id}
	}
	p.Stock += qty
	t.s.products[id] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.s.orders[o.ID] = *o
	return nil
}

func (t *memTx) InsertOrderItems(_ context.Context, items []OrderItem) error {
	for _, it := range items {
		t.s.items[it.OrderID] = append(t.s.items[it.OrderID], it)
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) UpdateOrder(_ context.Context, o *Order) error {
	if _, ok := t.s.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	t.s.orders[o.ID] = *o
	return nil
}

func (t *memTx) OrderItems(_ context.Context, orderID string) ([]OrderItem, error) {
	items := make([]OrderItem, len(t.s.items[orderID]))
	copy(items, t.s.items[orderID])
	return items, nil
}

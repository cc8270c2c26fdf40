package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeNotifier struct {
	mu      sync.Mutex
	created []string
	changed []string // "orderID:prev->new"
	fail    bool
}

func (f *fakeNotifier) OrderCreated(_ context.Context, o Order, _ []OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, o.ID)
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeNotifier) StatusChanged(_ context.Context, o Order, prev Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, o.ID+":"+string(prev)+"->"+string(o.Status))
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeNotifier) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newTestService(t *testing.T) (*Service, *MemStore, *fakeNotifier) {
	t.Helper()
	store := seedStore(t)
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, zaptest.NewLogger(t))
	return svc, store, notifier
}

func physicalOrderInput(items ...ItemInput) CreateOrderInput {
	return CreateOrderInput{
		Items:           items,
		TotalCents:      100000,
		NetTotalCents:   105000,
		ShippingAddress: "12 Park Street, Kolkata",
		CustomerName:    "A. Sen",
		Email:           "a.sen@example.com",
		PaymentMethod:   "card",
	}
}

func stockOf(t *testing.T, store *MemStore, id string) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrder_DeductsStockAndSetsFlag(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	order, items, err := svc.CreateOrder(ctx, physicalOrderInput(
		ItemInput{ProductID: "p1", Qty: 2, PriceCents: 120000},
		ItemInput{ProductID: "p2", Qty: 1, PriceCents: 45000, SelectedColor: "red", SelectedSize: "M"},
	))
	require.NoError(t, err)
	assert.True(t, order.StockDeducted)
	assert.Equal(t, StatusPaid, order.Status)
	assert.Len(t, items, 2)

	assert.Equal(t, 3, stockOf(t, store, "p1"))
	assert.Equal(t, 2, stockOf(t, store, "p2"))

	got, gotItems, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Len(t, gotItems, 2)

	require.Eventually(t, func() bool { return notifier.createdCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestCreateOrder_CashOnDeliveryStartsPending(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := physicalOrderInput(ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	in.PaymentMethod = "Cash On Delivery"
	order, _, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
}

func TestCreateOrder_DuplicateLinesAggregated(t *testing.T) {
	svc, store, _ := newTestService(t)

	// stock of p2 is 3; two lines of 2 each must fail as one demand of 4
	_, _, err := svc.CreateOrder(context.Background(), physicalOrderInput(
		ItemInput{ProductID: "p2", Qty: 2, PriceCents: 45000},
		ItemInput{ProductID: "p2", Qty: 2, PriceCents: 45000},
	))
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Cotton Kurta", insufficient.ProductName)

	// nothing committed
	assert.Equal(t, 3, stockOf(t, store, "p2"))
	n, err := store.CountOrdersByStatus(context.Background(), StatusPaid)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateOrder_DigitalOnlyNeverTouchesStock(t *testing.T) {
	svc, store, _ := newTestService(t)

	order, _, err := svc.CreateOrder(context.Background(), physicalOrderInput(
		ItemInput{ProductID: "p3", Qty: 7, PriceCents: 50000},
	))
	require.NoError(t, err)
	assert.True(t, order.StockDeducted)
	assert.Equal(t, 0, stockOf(t, store, "p3"))
}

func TestCreateOrder_UnknownProductRollsBack(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, _, err := svc.CreateOrder(context.Background(), physicalOrderInput(
		ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000},
		ItemInput{ProductID: "ghost", Qty: 1, PriceCents: 100},
	))
	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 5, stockOf(t, store, "p1"))
}

func TestCreateOrder_InvalidPayload(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	var invalid *InvalidOrderDataError

	in := physicalOrderInput(ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	in.TotalCents = 0
	_, _, err := svc.CreateOrder(ctx, in)
	require.ErrorAs(t, err, &invalid)

	in = physicalOrderInput(ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	in.ShippingAddress = ""
	_, _, err = svc.CreateOrder(ctx, in)
	require.ErrorAs(t, err, &invalid)

	in = physicalOrderInput()
	_, _, err = svc.CreateOrder(ctx, in)
	require.ErrorAs(t, err, &invalid)
}

func TestCreateOrder_ConcurrentRequestsNeverOversell(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// stock 5, two concurrent orders of 3: exactly one wins
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.CreateOrder(ctx, physicalOrderInput(
				ItemInput{ProductID: "p1", Qty: 3, PriceCents: 120000},
			))
		}(i)
	}
	wg.Wait()

	var insufficient *InsufficientStockError
	switch {
	case errs[0] == nil:
		require.ErrorAs(t, errs[1], &insufficient)
	case errs[1] == nil:
		require.ErrorAs(t, errs[0], &insufficient)
	default:
		t.Fatalf("both requests failed: %v / %v", errs[0], errs[1])
	}
	assert.Equal(t, 2, stockOf(t, store, "p1"))
}

func TestCreateOrder_NotifierFailureDoesNotRollBack(t *testing.T) {
	svc, store, notifier := newTestService(t)
	notifier.fail = true

	order, _, err := svc.CreateOrder(context.Background(), physicalOrderInput(
		ItemInput{ProductID: "p1", Qty: 2, PriceCents: 120000},
	))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return notifier.createdCount() == 1 },
		time.Second, 10*time.Millisecond)

	got, _, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, got.StockDeducted)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
}

func createOrder(t *testing.T, svc *Service, items ...ItemInput) Order {
	t.Helper()
	order, _, err := svc.CreateOrder(context.Background(), physicalOrderInput(items...))
	require.NoError(t, err)
	return order
}

func TestUpdateStatus_CancelRestoresStockOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 2, PriceCents: 120000})
	require.Equal(t, 3, stockOf(t, store, "p1"))

	updated, err := svc.UpdateStatus(ctx, order.ID, StatusCancelled, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.False(t, updated.StockDeducted)
	assert.Equal(t, 5, stockOf(t, store, "p1"))

	// repeating the cancellation is a no-op
	updated, err = svc.UpdateStatus(ctx, order.ID, StatusCancelled, "", "")
	require.NoError(t, err)
	assert.False(t, updated.StockDeducted)
	assert.Equal(t, 5, stockOf(t, store, "p1"))
}

func TestUpdateStatus_ReactivationDeductsExactlyOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 2, PriceCents: 120000})
	_, err := svc.UpdateStatus(ctx, order.ID, StatusCancelled, "", "")
	require.NoError(t, err)
	require.Equal(t, 5, stockOf(t, store, "p1"))

	updated, err := svc.UpdateStatus(ctx, order.ID, StatusConfirmed, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StockDeducted)
	assert.Equal(t, 3, stockOf(t, store, "p1"))

	// moving between two active statuses must not deduct again
	updated, err = svc.UpdateStatus(ctx, order.ID, StatusShipped, "", "")
	require.NoError(t, err)
	assert.True(t, updated.StockDeducted)
	assert.Equal(t, 3, stockOf(t, store, "p1"))
}

func TestUpdateStatus_DeliveredLeavesStockUntouched(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	updated, err := svc.UpdateStatus(ctx, order.ID, StatusDelivered, "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	assert.True(t, updated.StockDeducted)
	assert.Equal(t, 4, stockOf(t, store, "p1"))
}

func TestUpdateStatus_ReactivationFailsWhenStockGone(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 4, PriceCents: 120000})
	_, err := svc.UpdateStatus(ctx, order.ID, StatusCancelled, "", "")
	require.NoError(t, err)
	require.Equal(t, 5, stockOf(t, store, "p1"))

	// someone else buys most of the restored stock
	createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 3, PriceCents: 120000})
	require.Equal(t, 2, stockOf(t, store, "p1"))

	_, err = svc.UpdateStatus(ctx, order.ID, StatusPaid, "", "")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	// failed transition leaves status and stock untouched
	got, _, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.False(t, got.StockDeducted)
	assert.Equal(t, 2, stockOf(t, store, "p1"))
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.UpdateStatus(context.Background(), "nope", StatusPaid, "", "")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus_PaymentMetadata(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	updated, err := svc.UpdateStatus(ctx, order.ID, StatusPaid, "bkash", `{"trx":"TX123"}`)
	require.NoError(t, err)
	assert.Equal(t, "bkash", updated.PaymentMethod)
	assert.Equal(t, `{"trx":"TX123"}`, updated.PaymentInfo)

	got, _, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "bkash", got.PaymentMethod)
}

func TestPendingCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := physicalOrderInput(ItemInput{ProductID: "p1", Qty: 1, PriceCents: 120000})
	in.PaymentMethod = "cod"
	_, _, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	createOrder(t, svc, ItemInput{ProductID: "p2", Qty: 1, PriceCents: 45000})

	n, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

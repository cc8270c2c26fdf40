package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemStore {
	t.Helper()
	s := NewMemStore()
	s.SeedProduct(Product{ID: "p1", Name: "Banarasi Saree", Type: TypePhysical, Stock: 5, PriceCents: 120000})
	s.SeedProduct(Product{ID: "p2", Name: "Cotton Kurta", Type: TypePhysical, Stock: 3, PriceCents: 45000})
	s.SeedProduct(Product{ID: "p3", Name: "Gift Card", Type: TypeDigital, Stock: 0, PriceCents: 50000})
	return s
}

func TestAggregateDemand_MergesDuplicateLines(t *testing.T) {
	demand, err := AggregateDemand([]ItemInput{
		{ProductID: "p2", Qty: 2},
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []ItemQty{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 4},
	}, demand)
}

func TestAggregateDemand_RejectsBadInput(t *testing.T) {
	_, err := AggregateDemand(nil)
	var invalid *InvalidOrderDataError
	require.ErrorAs(t, err, &invalid)

	_, err = AggregateDemand([]ItemInput{{ProductID: "p1", Qty: 0}})
	require.ErrorAs(t, err, &invalid)

	_, err = AggregateDemand([]ItemInput{{ProductID: "p1", Qty: -2}})
	require.ErrorAs(t, err, &invalid)

	_, err = AggregateDemand([]ItemInput{{ProductID: "", Qty: 1}})
	require.ErrorAs(t, err, &invalid)
}

func TestCheckStock_AggregatedDemandExceedsStock(t *testing.T) {
	s := seedStore(t)
	// two lines of 2 against stock 3: each line alone fits, the sum must not
	demand, err := AggregateDemand([]ItemInput{
		{ProductID: "p2", Qty: 2},
		{ProductID: "p2", Qty: 2},
	})
	require.NoError(t, err)

	err = CheckStock(context.Background(), s, demand)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p2", insufficient.ProductID)
	assert.Equal(t, "Cotton Kurta", insufficient.ProductName)
	assert.Equal(t, 4, insufficient.Requested)
	assert.Equal(t, 3, insufficient.Available)
}

func TestCheckStock_UnknownProduct(t *testing.T) {
	s := seedStore(t)
	err := CheckStock(context.Background(), s, []ItemQty{{ProductID: "missing", Qty: 1}})
	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ProductID)
}

func TestCheckStock_DigitalSkipsStock(t *testing.T) {
	s := seedStore(t)
	// gift card has zero stock; digital products are exempt
	err := CheckStock(context.Background(), s, []ItemQty{{ProductID: "p3", Qty: 10}})
	require.NoError(t, err)
}

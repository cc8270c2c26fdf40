package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_RollbackRestoresState(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.DecrementStock(ctx, "p1", 2))
		require.NoError(t, tx.InsertOrder(ctx, &Order{ID: "o1", Status: StatusPaid}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, _, err = s.GetOrder(ctx, "o1")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemStore_DecrementNeverGoesNegative(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	err := s.RunTx(ctx, func(tx Tx) error {
		return tx.DecrementStock(ctx, "p2", 4)
	})
	require.ErrorIs(t, err, ErrStockConflict)

	p, err := s.GetProduct(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestMemStore_IncrementUnknownProduct(t *testing.T) {
	s := NewMemStore()
	err := s.RunTx(context.Background(), func(tx Tx) error {
		return tx.IncrementStock(context.Background(), "nope", 1)
	})
	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
}

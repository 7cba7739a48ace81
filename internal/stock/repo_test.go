package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/db/dbtest"
)

func TestDecrementIfAvailableRejectsOverdraw(t *testing.T) {
	client := dbtest.Open(t)
	lot := dbtest.MustCreateLot(t, client.DB(), 10, "3")
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(client.DB()).WithTx(tx)

		ok, err := repo.DecrementIfAvailable(ctx, lot.ProductID, 6)
		require.NoError(t, err)
		assert.True(t, ok)

		// Same transaction, same snapshot: only the quantity >= ? predicate
		// stands between the second call and a negative balance.
		ok, err = repo.DecrementIfAvailable(ctx, lot.ProductID, 6)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.DecrementIfAvailable(ctx, lot.ProductID, 4)
		require.NoError(t, err)
		assert.True(t, ok, "draining to exactly zero is allowed")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, dbtest.Quantity(t, client.DB(), lot.ProductID))
}

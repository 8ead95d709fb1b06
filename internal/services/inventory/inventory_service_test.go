package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/db/dbtest"
	"github.com/thishamdi/digital-store-api/internal/models"
)

func TestDebitStock(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewInventoryService(gdb)
	p := dbtest.Product(t, gdb, dbtest.ProductOpts{Stock: 5})

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return svc.DebitStock(tx, p.ID, 3)
	})
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, gdb.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 2, got.Stock)
	assert.Equal(t, 3, got.SalesCount)
}

func TestDebitStockGuardsNegative(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewInventoryService(gdb)
	p := dbtest.Product(t, gdb, dbtest.ProductOpts{Stock: 2})

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return svc.DebitStock(tx, p.ID, 3)
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, dbtest.Stock(t, gdb, p.ID))

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return svc.DebitStock(tx, p.ID, 0)
	})
	assert.Error(t, err)
}

func TestLockProducts(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewInventoryService(gdb)
	a := dbtest.Product(t, gdb, dbtest.ProductOpts{Stock: 1})
	b := dbtest.Product(t, gdb, dbtest.ProductOpts{Stock: 4})

	var locked map[uuid.UUID]*models.Product
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		locked, err = svc.LockProducts(tx, []uuid.UUID{b.ID, a.ID, uuid.New()})
		return err
	})
	require.NoError(t, err)

	require.Len(t, locked, 2)
	assert.Equal(t, 4, locked[b.ID].Stock)
	require.Len(t, locked[a.ID].Variants, 1)
	assert.Equal(t, a.Variants[0].ID, locked[a.ID].Variants[0].ID)
}

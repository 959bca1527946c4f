package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPORepository_AddReceivedExact(t *testing.T) {
	db := testutil.SetupTestDB(t)
	po := testutil.SeedPO(t, db, entity.POStatusSent, testutil.SeedLine{ItemID: "ITEM-A", Ordered: 1})
	repo := NewPORepository(db)
	ctx := context.Background()
	lineID := po.Lines[0].ID

	for _, q := range []string{"0.1", "0.2", "0.3", "0.4"} {
		_, ok, err := repo.AddReceived(ctx, lineID, d(q))
		require.NoError(t, err)
		require.True(t, ok, q)
	}

	current, ok, err := repo.AddReceived(ctx, lineID, d("0.0001"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, current.RemainingQty().IsZero(), current.RemainingQty().String())

	line, err := repo.FindLineByID(ctx, lineID)
	require.NoError(t, err)
	assert.True(t, d("1").Equal(line.ReceivedQty), line.ReceivedQty.String())
}

func TestPORepository_DispatchedReleaseFloorsAtZero(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	po := testutil.SeedPO(t, gdb, entity.POStatusSent, testutil.SeedLine{ItemID: "ITEM-A", Ordered: 2})
	repo := NewPORepository(gdb)
	ctx := context.Background()
	lineID := po.Lines[0].ID

	_, ok, err := repo.AddDispatched(ctx, lineID, d("1.5"))
	require.NoError(t, err)
	require.True(t, ok)
	current, ok, err := repo.AddDispatched(ctx, lineID, d("0.6"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "0.5", current.PendingDispatchQty().String())

	require.NoError(t, repo.ReleaseDispatched(ctx, lineID, d("1.2")))
	require.NoError(t, repo.ReleaseDispatched(ctx, lineID, d("1")))
	line, err := repo.FindLineByID(ctx, lineID)
	require.NoError(t, err)
	assert.True(t, line.DispatchedQty.IsZero(), line.DispatchedQty.String())
}

func TestInventoryRepository_CreditDebitExact(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewInventoryRepository(db)
	ctx := context.Background()
	seed := &entity.InventoryItem{ItemID: "ITEM-A", StoreID: "STORE-A", BinID: "BIN-01", ItemCode: "CODE-A", UOM: "KG"}

	first, err := repo.Credit(ctx, seed, d("0.1"))
	require.NoError(t, err)
	second, err := repo.Credit(ctx, seed, d("0.2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "0.3", second.QuantityAvailable.String())
	require.NotNil(t, second.LastMovedAt)

	after, ok, err := repo.Debit(ctx, second.ID, d("0.3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, after.QuantityAvailable.IsZero())

	after, ok, err = repo.Debit(ctx, second.ID, d("0.0001"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, after.QuantityAvailable.IsZero())

	stored, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, stored.QuantityAvailable.IsZero(), stored.QuantityAvailable.String())

	_, _, err = repo.Debit(ctx, "missing", d("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSwapQuantity_StaleRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.SeedInventory(t, db, "ITEM-A", "STORE-A", "BIN-01", 5)
	ctx := context.Background()
	model := &entity.InventoryItem{}

	// 读取后已被其他事务改为5以外的值
	err := swapQuantity(ctx, db, model, item.ID, "quantity_available", d("4"), d("3"), nil)
	assert.ErrorIs(t, err, ErrStale)

	err = swapQuantity(ctx, db, model, item.ID, "quantity_available", d("5"), d("3"), map[string]interface{}{"updated_at": time.Now()})
	require.NoError(t, err)
	got, err := NewInventoryRepository(db).FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", got.QuantityAvailable.String())
}

func TestCreate_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	existing := testutil.SeedPO(t, db, entity.POStatusDraft, testutil.SeedLine{ItemID: "ITEM-A", Ordered: 1})

	po := &entity.PurchaseOrder{
		ID:        "po-dup-0000000000000000000000001",
		PONumber:  existing.PONumber,
		VendorID:  "vendor-002",
		Status:    entity.POStatusDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err := NewPORepository(db).Create(context.Background(), po)
	assert.ErrorIs(t, err, ErrDuplicate)
}

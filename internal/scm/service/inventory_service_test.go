package service_test

import (
	"testing"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveGatePass_CreditsInventory(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)
	out, err := f.inspect(mr, 15, 5)
	require.NoError(t, err)

	res := f.stock(out.GatePass)
	assert.Equal(t, entity.GatePassReceived, res.GatePass.StoreStatus)
	assert.NotNil(t, res.GatePass.ReceivedAt)
	require.Len(t, res.Inventory, 1)
	inv := res.Inventory[0]
	assert.Equal(t, "ITEM-A", inv.ItemID)
	assert.Equal(t, storeMain, inv.StoreID)
	assert.Equal(t, binMain, inv.BinID)
	requireQty(t, 15, inv.QuantityAvailable)

	txs, total, err := f.svc.ListInventoryTransactions(f.ctx, 1, 20, map[string]string{"inventory_item_id": inv.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, entity.TxTypeIn, txs[0].TransactionType)
	assert.Equal(t, entity.RefTypeGatePass, txs[0].ReferenceType)
	requireQty(t, 15, txs[0].Quantity)
	requireQty(t, 15, txs[0].BalanceAfter)
}

func TestReceiveGatePass_ExactlyOnce(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)
	out, err := f.inspect(mr, 20, 0)
	require.NoError(t, err)

	res := f.stock(out.GatePass)
	invID := res.Inventory[0].ID

	_, err = f.svc.ReceiveGatePass(f.ctx, userID, out.GatePass.ID, &service.ReceiveGatePassRequest{BinID: binMain})
	requireKind(t, err, service.KindConflict)
	requireQty(t, 20, f.available(invID))

	// 已入库的放行单不能再移交
	_, err = f.svc.DispatchToStore(f.ctx, userID, out.GatePass.ID, nil)
	requireKind(t, err, service.KindInvalidState)
}

func TestReceiveGatePass_RequiresSentToStore(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)
	out, err := f.inspect(mr, 20, 0)
	require.NoError(t, err)

	_, err = f.svc.ReceiveGatePass(f.ctx, userID, out.GatePass.ID, &service.ReceiveGatePassRequest{BinID: binMain})
	requireKind(t, err, service.KindConflict)

	_, err = f.svc.ReceiveGatePass(f.ctx, userID, "missing", nil)
	requireKind(t, err, service.KindNotFound)
}

func TestReceiveGatePass_LocationRules(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(
		testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100},
		testutil.SeedLine{ItemID: "ITEM-B", Ordered: 100},
	)
	mr, err := f.receive(po, 10, 10)
	require.NoError(t, err)
	out, err := f.inspect(mr, 10, 0, 10, 0)
	require.NoError(t, err)
	gp := out.GatePass
	require.Len(t, gp.Items, 2)

	_, err = f.svc.DispatchToStore(f.ctx, userID, gp.ID, nil)
	require.NoError(t, err)

	// 未指定库位
	_, err = f.svc.ReceiveGatePass(f.ctx, userID, gp.ID, &service.ReceiveGatePassRequest{})
	requireKind(t, err, service.KindValidation)

	// 不属于放行单的行项
	_, err = f.svc.ReceiveGatePass(f.ctx, userID, gp.ID, &service.ReceiveGatePassRequest{
		BinID: binMain,
		Items: []service.ItemLocation{{GatePassItemID: "foreign", BinID: "BIN-X"}},
	})
	requireKind(t, err, service.KindNotFound)

	// 失败不改变状态
	got, err := f.svc.GetGatePass(f.ctx, gp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.GatePassSentToStore, got.StoreStatus)
	inventory, _, err := f.svc.ListInventory(f.ctx, 1, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, inventory)

	// 单独指定一行的库位，其余使用默认库位
	res, err := f.svc.ReceiveGatePass(f.ctx, userID, gp.ID, &service.ReceiveGatePassRequest{
		BinID: binMain,
		Items: []service.ItemLocation{{GatePassItemID: gp.Items[0].ID, BinID: "BIN-02"}},
	})
	require.NoError(t, err)
	bins := map[string]string{}
	for _, inv := range res.Inventory {
		bins[inv.ItemID] = inv.BinID
	}
	assert.Equal(t, "BIN-02", bins[gp.Items[0].ItemID])
	assert.Equal(t, binMain, bins[gp.Items[1].ItemID])
}

func TestReceiveGatePass_MergesSameLocation(t *testing.T) {
	f := newFixture(t)
	_, first := f.stocked("ITEM-A", 100, 20)
	_, second := f.stocked("ITEM-A", 100, 7)

	assert.Equal(t, first.ID, second.ID)
	requireQty(t, 27, second.QuantityAvailable)

	items, total, err := f.svc.ListInventory(f.ctx, 1, 20, map[string]string{"item_id": "ITEM-A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	requireQty(t, 27, items[0].QuantityAvailable)

	_, total, err = f.svc.ListInventoryTransactions(f.ctx, 1, 20, map[string]string{"inventory_item_id": first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	requireQty(t, 27, f.rec.quantities["stored"])
}

func TestReceiveGatePass_FractionalCreditsMerge(t *testing.T) {
	f := newFixture(t)
	po := f.fractionalPO("ITEM-F", "1")

	var stored entity.InventoryItem
	for _, q := range []string{"0.1", "0.2"} {
		mr, err := f.receiveDec(po, q)
		require.NoError(t, err)
		out, err := f.svc.SubmitInspection(f.ctx, userID, &service.SubmitInspectionRequest{
			MRID:        mr.ID,
			InspectedBy: "QC Zhang",
			Lines:       []service.InspectionLineRequest{{MRLineID: mr.Lines[0].ID, AcceptedQuantity: dec(q)}},
		})
		require.NoError(t, err)
		require.NotNil(t, out.GatePass)
		res := f.stock(out.GatePass)
		require.Len(t, res.Inventory, 1)
		stored = res.Inventory[0]
	}
	requireDec(t, "0.3", stored.QuantityAvailable)
	requireDec(t, "0.3", f.available(stored.ID))

	tracking, err := f.svc.TrackPO(f.ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, tracking.Lines, 1)
	requireDec(t, "0.3", tracking.Lines[0].AcceptedQty)

	_, err = f.issueDec(&stored, "0.3")
	require.NoError(t, err)
	requireDec(t, "0", f.available(stored.ID))
}

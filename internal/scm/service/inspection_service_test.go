package service_test

import (
	"testing"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitInspection_IssuesGatePass(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)

	out, err := f.inspect(mr, 15, 5)
	require.NoError(t, err)
	assert.Equal(t, entity.InspectionResultPartiallyAccepted, out.Inspection.Result)
	require.Len(t, out.Inspection.Lines, 1)
	requireQty(t, 20, out.Inspection.Lines[0].ReceivedQty)

	require.NotNil(t, out.GatePass)
	assert.Equal(t, entity.GatePassPending, out.GatePass.StoreStatus)
	assert.Equal(t, storeMain, out.GatePass.StoreID)
	require.Len(t, out.GatePass.Items, 1)
	requireQty(t, 15, out.GatePass.Items[0].AcceptedQty)

	got, err := f.svc.GetReceipt(f.ctx, mr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MRStatusInspected, got.Status)

	byMR, err := f.svc.GetInspectionByMR(f.ctx, mr.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Inspection.ID, byMR.ID)

	requireQty(t, 15, f.rec.quantities["accepted"])
	requireQty(t, 5, f.rec.quantities["rejected"])
}

func TestSubmitInspection_Twice(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)

	_, err = f.inspect(mr, 20, 0)
	require.NoError(t, err)

	_, err = f.inspect(mr, 10, 10)
	requireKind(t, err, service.KindConflict)

	inspection, err := f.svc.GetInspectionByMR(f.ctx, mr.ID)
	require.NoError(t, err)
	requireQty(t, 20, inspection.Lines[0].AcceptedQty)
}

func TestSubmitInspection_LineRules(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(
		testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100},
		testutil.SeedLine{ItemID: "ITEM-B", Ordered: 100},
	)
	mr, err := f.receive(po, 20, 10)
	require.NoError(t, err)

	// 合格+不合格不等于收货
	_, err = f.inspect(mr, 15, 4, 10, 0)
	requireKind(t, err, service.KindValidation)

	// 漏检一行
	_, err = f.inspect(mr, 15, 5)
	requireKind(t, err, service.KindValidation)

	// 重复检验同一收货行
	_, err = f.svc.SubmitInspection(f.ctx, userID, &service.SubmitInspectionRequest{
		MRID: mr.ID, InspectedBy: "QC",
		Lines: []service.InspectionLineRequest{
			{MRLineID: mr.Lines[0].ID, AcceptedQuantity: qty(20)},
			{MRLineID: mr.Lines[0].ID, AcceptedQuantity: qty(20)},
		},
	})
	requireKind(t, err, service.KindValidation)

	// 不属于该收货单的行
	_, err = f.svc.SubmitInspection(f.ctx, userID, &service.SubmitInspectionRequest{
		MRID: mr.ID, InspectedBy: "QC",
		Lines: []service.InspectionLineRequest{{MRLineID: "foreign", AcceptedQuantity: qty(1)}},
	})
	requireKind(t, err, service.KindNotFound)

	// 缺少检验人
	_, err = f.svc.SubmitInspection(f.ctx, userID, &service.SubmitInspectionRequest{MRID: mr.ID})
	requireKind(t, err, service.KindValidation)

	got, err := f.svc.GetReceipt(f.ctx, mr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MRStatusCreated, got.Status)

	_, err = f.inspect(mr, 20, 0, 0, 10)
	require.NoError(t, err)
}

func TestSubmitInspection_FullyRejected(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)

	out, err := f.inspect(mr, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, entity.InspectionResultFullyRejected, out.Inspection.Result)
	assert.Nil(t, out.GatePass)

	_, err = f.svc.GetGatePassByInspection(f.ctx, out.Inspection.ID)
	requireKind(t, err, service.KindNotFound)

	gp, err := f.svc.IssueFromInspection(f.ctx, userID, out.Inspection.ID)
	require.NoError(t, err)
	assert.Nil(t, gp)
}

func TestGatePassFidelity(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(
		testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100},
		testutil.SeedLine{ItemID: "ITEM-B", Ordered: 100},
		testutil.SeedLine{ItemID: "ITEM-C", Ordered: 100},
	)
	mr, err := f.receive(po, 20, 10, 5)
	require.NoError(t, err)

	out, err := f.inspect(mr, 15, 5, 0, 10, 5, 0)
	require.NoError(t, err)
	require.NotNil(t, out.GatePass)

	// 只有合格数量>0的行进入放行单
	require.Len(t, out.GatePass.Items, 2)
	total := qty(0)
	for _, item := range out.GatePass.Items {
		assert.True(t, item.AcceptedQty.IsPositive())
		total = total.Add(item.AcceptedQty)
	}
	requireQty(t, 20, total)

	_, err = f.svc.IssueFromInspection(f.ctx, userID, out.Inspection.ID)
	requireKind(t, err, service.KindConflict)
}

func TestDispatchToStore(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)
	out, err := f.inspect(mr, 20, 0)
	require.NoError(t, err)

	gp, err := f.svc.DispatchToStoreByInspection(f.ctx, userID, out.Inspection.ID, &service.DispatchToStoreRequest{StoreID: "STORE-B"})
	require.NoError(t, err)
	assert.Equal(t, entity.GatePassSentToStore, gp.StoreStatus)
	assert.Equal(t, "STORE-B", gp.StoreID)
	assert.NotNil(t, gp.SentAt)

	_, err = f.svc.DispatchToStore(f.ctx, userID, gp.ID, nil)
	requireKind(t, err, service.KindInvalidState)

	_, err = f.svc.DispatchToStoreByInspection(f.ctx, userID, "missing", nil)
	requireKind(t, err, service.KindNotFound)

	list, total, err := f.svc.ListGatePasses(f.ctx, 1, 20, map[string]string{"store_status": entity.GatePassSentToStore})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, gp.ID, list[0].ID)
}

func TestDispatchToStore_RequiresStore(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.svc.CreateReceipt(f.ctx, userID, &service.CreateReceiptRequest{
		POID:  po.ID,
		Lines: []service.ReceiptLineRequest{{POLineID: po.Lines[0].ID, ReceivedQuantity: qty(5)}},
	})
	require.NoError(t, err)
	out, err := f.inspect(mr, 5, 0)
	require.NoError(t, err)

	_, err = f.svc.DispatchToStore(f.ctx, userID, out.GatePass.ID, nil)
	requireKind(t, err, service.KindValidation)
}

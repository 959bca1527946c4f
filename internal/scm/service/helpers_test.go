package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	storeMain = "STORE-A"
	binMain   = "BIN-01"
	userID    = "user-001"
)

type recordedTransition struct {
	entityType, from, to string
}

// recorder 同时实现指标与推送接口，收集状态变更
type recorder struct {
	mu          sync.Mutex
	transitions []recordedTransition
	quantities  map[string]decimal.Decimal
	rejections  map[string]int
	events      []string
}

func newRecorder() *recorder {
	return &recorder{quantities: map[string]decimal.Decimal{}, rejections: map[string]int{}}
}

func (r *recorder) Transition(entityType, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, recordedTransition{entityType, from, to})
}

func (r *recorder) Quantity(stage string, qty decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quantities[stage] = r.quantities[stage].Add(qty)
}

func (r *recorder) Rejected(operation, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections[operation+"/"+kind]++
}

func (r *recorder) Publish(eventType string, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
	svc *service.WorkflowService
	rec *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	reports, err := repository.NewReportRepository(db)
	require.NoError(t, err)

	svc := service.NewWorkflowService(repos, reports, service.DefaultOptions())
	rec := newRecorder()
	svc.SetMetrics(rec)
	svc.SetPublisher(rec)
	return &fixture{t: t, ctx: context.Background(), db: db, svc: svc, rec: rec}
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func requireKind(t *testing.T, err error, kind service.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equalf(t, kind, service.KindOf(err), "unexpected error: %v", err)
}

func requireQty(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, qty(want).Equal(got), "want %d, got %s %v", want, got.String(), msgAndArgs)
}

// draftPO 通过服务创建草稿PO，items 为 物料->订购数量
func (f *fixture) draftPO(items ...testutil.SeedLine) *entity.PurchaseOrder {
	f.t.Helper()
	req := &service.CreatePORequest{VendorID: "vendor-001", VendorName: "Acme"}
	for _, it := range items {
		req.Lines = append(req.Lines, service.POLineRequest{
			ItemID:          it.ItemID,
			ItemCode:        "CODE-" + it.ItemID,
			ItemName:        "Item " + it.ItemID,
			OrderedQuantity: qty(it.Ordered),
			Rate:            qty(10),
		})
	}
	po, err := f.svc.CreatePO(f.ctx, userID, req)
	require.NoError(f.t, err)
	return po
}

func (f *fixture) sentPO(items ...testutil.SeedLine) *entity.PurchaseOrder {
	f.t.Helper()
	po := f.draftPO(items...)
	po, err := f.svc.SendPO(f.ctx, userID, po.ID)
	require.NoError(f.t, err)
	return po
}

// receive 按PO行顺序登记收货数量
func (f *fixture) receive(po *entity.PurchaseOrder, quantities ...int64) (*entity.MaterialReceipt, error) {
	req := &service.CreateReceiptRequest{POID: po.ID, StoreID: storeMain, BinID: binMain}
	for i, q := range quantities {
		req.Lines = append(req.Lines, service.ReceiptLineRequest{
			POLineID:         po.Lines[i].ID,
			ReceivedQuantity: qty(q),
		})
	}
	return f.svc.CreateReceipt(f.ctx, userID, req)
}

// inspect 按物料顺序提交 合格/不合格 数量，pairs 依次为 accepted, rejected
func (f *fixture) inspect(mr *entity.MaterialReceipt, pairs ...int64) (*service.InspectionOutcome, error) {
	lines := append([]entity.MRLine(nil), mr.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })

	req := &service.SubmitInspectionRequest{MRID: mr.ID, InspectedBy: "QC Zhang"}
	for i := 0; i+1 < len(pairs); i += 2 {
		req.Lines = append(req.Lines, service.InspectionLineRequest{
			MRLineID:         lines[i/2].ID,
			AcceptedQuantity: qty(pairs[i]),
			RejectedQuantity: qty(pairs[i+1]),
		})
	}
	return f.svc.SubmitInspection(f.ctx, userID, req)
}

// stock 放行单移交并入库到默认库位
func (f *fixture) stock(gp *entity.GatePass) *service.ReceiveOutcome {
	f.t.Helper()
	_, err := f.svc.DispatchToStore(f.ctx, userID, gp.ID, nil)
	require.NoError(f.t, err)
	out, err := f.svc.ReceiveGatePass(f.ctx, userID, gp.ID, &service.ReceiveGatePassRequest{BinID: binMain})
	require.NoError(f.t, err)
	return out
}

// stocked 走完整链路：发送PO、收货、全部合格、入库，返回PO与入库记录
func (f *fixture) stocked(itemID string, ordered, received int64) (*entity.PurchaseOrder, *entity.InventoryItem) {
	f.t.Helper()
	po := f.sentPO(testutil.SeedLine{ItemID: itemID, Ordered: ordered})
	mr, err := f.receive(po, received)
	require.NoError(f.t, err)
	out, err := f.inspect(mr, received, 0)
	require.NoError(f.t, err)
	require.NotNil(f.t, out.GatePass)
	res := f.stock(out.GatePass)
	require.Len(f.t, res.Inventory, 1)
	return po, &res.Inventory[0]
}

// fractionalPO 单行PO，订购数量带小数
func (f *fixture) fractionalPO(itemID, ordered string) *entity.PurchaseOrder {
	f.t.Helper()
	po, err := f.svc.CreatePO(f.ctx, userID, &service.CreatePORequest{
		VendorID: "vendor-001",
		Lines: []service.POLineRequest{{
			ItemID:          itemID,
			ItemCode:        "CODE-" + itemID,
			OrderedQuantity: dec(ordered),
			Rate:            qty(1),
		}},
	})
	require.NoError(f.t, err)
	po, err = f.svc.SendPO(f.ctx, userID, po.ID)
	require.NoError(f.t, err)
	return po
}

// receiveDec 单行收货，数量为小数字符串
func (f *fixture) receiveDec(po *entity.PurchaseOrder, q string) (*entity.MaterialReceipt, error) {
	return f.svc.CreateReceipt(f.ctx, userID, &service.CreateReceiptRequest{
		POID:    po.ID,
		StoreID: storeMain,
		BinID:   binMain,
		Lines:   []service.ReceiptLineRequest{{POLineID: po.Lines[0].ID, ReceivedQuantity: dec(q)}},
	})
}

// issueDec 以 SO 为依据创建并发出单行发料单
func (f *fixture) issueDec(inv *entity.InventoryItem, q string) (*entity.MaterialDispatch, error) {
	req := f.dispatchReq("SO", "SO-0001", inv, 1)
	req.Lines[0].QuantityDispatched = dec(q)
	d, err := f.svc.CreateDispatch(f.ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return f.svc.IssueDispatch(f.ctx, userID, d.ID)
}

func (f *fixture) dispatchReq(refType, refID string, inv *entity.InventoryItem, n int64) *service.DispatchRequest {
	return &service.DispatchRequest{
		DispatchDate:  "2026-10-15",
		ReferenceType: refType,
		ReferenceID:   refID,
		WarehouseID:   inv.StoreID,
		ReceiverName:  "Line 3",
		Lines: []service.DispatchLineRequest{{
			InventoryItemID:    inv.ID,
			QuantityDispatched: qty(n),
		}},
	}
}

func (f *fixture) available(id string) decimal.Decimal {
	f.t.Helper()
	inv, err := f.svc.GetInventoryItem(f.ctx, id)
	require.NoError(f.t, err)
	return inv.QuantityAvailable
}

package service_test

import (
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConcurrently 并发执行 n 次，返回每次的错误
func runConcurrently(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func countSuccess(t *testing.T, errs []error, allowed ...service.ErrorKind) int {
	t.Helper()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Contains(t, allowed, service.KindOf(err), "unexpected error: %v", err)
	}
	return ok
}

func TestConcurrentReceipts_Conservation(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})

	errs := runConcurrently(10, func(int) error {
		_, err := f.receive(po, 15)
		return err
	})
	assert.Equal(t, 6, countSuccess(t, errs, service.KindValidation, service.KindConflict))

	got, err := f.svc.GetPO(f.ctx, po.ID)
	require.NoError(t, err)
	requireQty(t, 90, got.Lines[0].ReceivedQty)

	remaining, err := f.svc.RemainingQuantity(f.ctx, po.ID, po.Lines[0].ID)
	require.NoError(t, err)
	requireQty(t, 90, remaining.ReceivedQuantity)
	requireQty(t, 10, remaining.RemainingQuantity)
}

func TestConcurrentInspection_SingleWinner(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)

	errs := runConcurrently(5, func(int) error {
		_, err := f.inspect(mr, 20, 0)
		return err
	})
	assert.Equal(t, 1, countSuccess(t, errs, service.KindConflict))

	passes, total, err := f.svc.ListGatePasses(f.ctx, 1, 20, map[string]string{"po_id": po.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	requireQty(t, 20, passes[0].Items[0].AcceptedQty)
}

func TestConcurrentGatePassReceive_CreditsOnce(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(testutil.SeedLine{ItemID: "ITEM-A", Ordered: 100})
	mr, err := f.receive(po, 20)
	require.NoError(t, err)
	out, err := f.inspect(mr, 20, 0)
	require.NoError(t, err)
	_, err = f.svc.DispatchToStore(f.ctx, userID, out.GatePass.ID, nil)
	require.NoError(t, err)

	errs := runConcurrently(5, func(int) error {
		_, err := f.svc.ReceiveGatePass(f.ctx, userID, out.GatePass.ID, &service.ReceiveGatePassRequest{BinID: binMain})
		return err
	})
	assert.Equal(t, 1, countSuccess(t, errs, service.KindConflict))

	items, _, err := f.svc.ListInventory(f.ctx, 1, 20, map[string]string{"item_id": "ITEM-A"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	requireQty(t, 20, items[0].QuantityAvailable)
}

func TestConcurrentDispatches_NeverNegative(t *testing.T) {
	f := newFixture(t)
	po, inv := f.stocked("ITEM-A", 100, 15)

	ids := make([]string, 5)
	for i := range ids {
		d, err := f.svc.CreateDispatch(f.ctx, userID, f.dispatchReq("PO", po.ID, inv, 5))
		require.NoError(t, err)
		ids[i] = d.ID
	}

	errs := runConcurrently(len(ids), func(i int) error {
		_, err := f.svc.IssueDispatch(f.ctx, userID, ids[i])
		return err
	})
	assert.Equal(t, 3, countSuccess(t, errs, service.KindValidation, service.KindConflict))
	requireQty(t, 0, f.available(inv.ID))

	_, total, err := f.svc.ListDispatches(f.ctx, 1, 20, map[string]string{"status": entity.DispatchStatusDispatched})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestConcurrentIssue_SameDispatch(t *testing.T) {
	f := newFixture(t)
	po, inv := f.stocked("ITEM-A", 100, 15)
	d, err := f.svc.CreateDispatch(f.ctx, userID, f.dispatchReq("PO", po.ID, inv, 5))
	require.NoError(t, err)

	errs := runConcurrently(5, func(int) error {
		_, err := f.svc.IssueDispatch(f.ctx, userID, d.ID)
		return err
	})
	assert.Equal(t, 1, countSuccess(t, errs, service.KindInvalidState, service.KindConflict))
	requireQty(t, 10, f.available(inv.ID))
}

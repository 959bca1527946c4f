package service_test

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestExportInventory(t *testing.T) {
	f := newFixture(t)
	f.stocked("ITEM-A", 100, 15)

	file, name, err := f.svc.ExportInventory(f.ctx, nil)
	require.NoError(t, err)
	defer file.Close()
	assert.True(t, strings.HasPrefix(name, "Inventory_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	rows, err := file.GetRows("库存")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "仓库", rows[0][0])
	assert.Equal(t, storeMain, rows[1][0])
	assert.Equal(t, binMain, rows[1][1])
	assert.Equal(t, "CODE-ITEM-A", rows[1][2])
	assert.Equal(t, "15", rows[1][5])
}

func TestExportDispatches(t *testing.T) {
	f := newFixture(t)
	po, inv := f.stocked("ITEM-A", 100, 15)

	req := f.dispatchReq("PO", po.ID, inv, 4)
	req.IssueNow = true
	_, err := f.svc.CreateDispatch(f.ctx, userID, req)
	require.NoError(t, err)

	file, name, err := f.svc.ExportDispatches(f.ctx, map[string]string{"status": "DISPATCHED"})
	require.NoError(t, err)
	defer file.Close()
	assert.True(t, strings.HasPrefix(name, "Dispatch_Register_"))

	rows, err := file.GetRows("发料登记")
	require.NoError(t, err)
	// 表头 + 1 行明细 + 汇总
	require.Len(t, rows, 3)
	assert.Equal(t, "DISPATCHED", rows[1][2])
	assert.Equal(t, "PO", rows[1][3])
	assert.Equal(t, "4", rows[1][10])
	assert.Equal(t, "汇总", rows[2][0])
}

func TestExportTransactions(t *testing.T) {
	f := newFixture(t)
	po, inv := f.stocked("ITEM-A", 100, 15)
	req := f.dispatchReq("PO", po.ID, inv, 5)
	req.IssueNow = true
	_, err := f.svc.CreateDispatch(f.ctx, userID, req)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportTransactions(f.ctx, &buf, "", nil))
	utf8Len := buf.Len()
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "时间", records[0][0])

	labels := []string{records[1][1], records[2][1]}
	assert.ElementsMatch(t, []string{"入库", "出库"}, labels)

	// GBK 输出解码后内容一致
	var gbk bytes.Buffer
	require.NoError(t, f.svc.ExportTransactions(f.ctx, &gbk, "GBK", nil))
	assert.Less(t, gbk.Len(), utf8Len)
	decoded, err := io.ReadAll(transform.NewReader(&gbk, simplifiedchinese.GBK.NewDecoder()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(decoded), "时间,类型"))
}

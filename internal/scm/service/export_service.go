package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var inventoryExportHeaders = []string{
	"仓库", "库位", "物料编码", "物料名称", "单位", "可用数量", "最近变动",
}

var dispatchExportHeaders = []string{
	"发料单号", "发料日期", "状态", "依据类型", "依据单号", "仓库",
	"物料编码", "物料名称", "单位", "批次", "发料数量", "收货方", "车牌号",
}

var transactionExportHeaders = []string{
	"时间", "类型", "单据类型", "单据号", "仓库", "库位", "物料", "数量", "结存",
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	return style
}

func writeHeaders(f *excelize.File, sheet string, headers []string, widths []float64) {
	style := headerStyle(f)
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}

// ExportInventory 导出库存台账xlsx
func (s *WorkflowService) ExportInventory(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	items, _, err := s.repos.Inventory.FindAll(ctx, 1, 0, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list inventory: %w", err)
	}

	f := excelize.NewFile()
	sheet := "库存"
	f.SetSheetName("Sheet1", sheet)
	writeHeaders(f, sheet, inventoryExportHeaders, []float64{12, 12, 16, 24, 8, 12, 20})

	for i, item := range items {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.StoreID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.BinID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.ItemCode)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.ItemName)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.UOM)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), item.QuantityAvailable.InexactFloat64())
		if item.LastMovedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), item.LastMovedAt.Format("2006-01-02 15:04"))
		}
	}

	filename := fmt.Sprintf("Inventory_%s.xlsx", s.now().Format("20060102"))
	return f, filename, nil
}

// ExportDispatches 导出发料登记簿xlsx，每个发料行一行
func (s *WorkflowService) ExportDispatches(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	dispatches, _, err := s.repos.Dispatch.FindAll(ctx, 1, 0, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list dispatches: %w", err)
	}

	f := excelize.NewFile()
	sheet := "发料登记"
	f.SetSheetName("Sheet1", sheet)
	writeHeaders(f, sheet, dispatchExportHeaders, []float64{16, 12, 12, 10, 20, 12, 16, 24, 8, 12, 12, 16, 12})

	row := 2
	for _, d := range dispatches {
		for _, l := range d.Lines {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), d.DispatchNumber)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), d.DispatchDate.Format("2006-01-02"))
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), d.Status)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), d.ReferenceType)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), d.ReferenceID)
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), d.WarehouseID)
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), l.ItemCode)
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), l.ItemName)
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), l.UOM)
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), l.BatchNumber)
			f.SetCellValue(sheet, fmt.Sprintf("K%d", row), l.QuantityDispatched.InexactFloat64())
			f.SetCellValue(sheet, fmt.Sprintf("L%d", row), d.ReceiverName)
			f.SetCellValue(sheet, fmt.Sprintf("M%d", row), d.VehicleNumber)
			row++
		}
	}

	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("发料单数: %d", len(dispatches)))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("M%d", row), summaryStyle)

	filename := fmt.Sprintf("Dispatch_Register_%s.xlsx", s.now().Format("20060102"))
	return f, filename, nil
}

// ExportTransactions 导出库存流水CSV；encoding=gbk 时按GBK编码输出，便于Excel直接打开
func (s *WorkflowService) ExportTransactions(ctx context.Context, w io.Writer, encoding string, filters map[string]string) error {
	txs, _, err := s.repos.Inventory.FindTransactions(ctx, 1, 0, filters)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	out := w
	var encoder *transform.Writer
	if strings.EqualFold(encoding, "gbk") {
		encoder = transform.NewWriter(w, simplifiedchinese.GBK.NewEncoder())
		out = encoder
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(transactionExportHeaders); err != nil {
		return err
	}
	for _, tx := range txs {
		record := []string{
			tx.CreatedAt.Format(time.DateTime),
			transactionTypeLabel(tx.TransactionType),
			tx.ReferenceType,
			tx.ReferenceCode,
			tx.StoreID,
			tx.BinID,
			tx.ItemID,
			tx.Quantity.String(),
			tx.BalanceAfter.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if encoder != nil {
		return encoder.Close()
	}
	return nil
}

func transactionTypeLabel(t string) string {
	switch t {
	case entity.TxTypeIn:
		return "入库"
	case entity.TxTypeOut:
		return "出库"
	}
	return t
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportRepository 只读汇总查询（sqlx 直接执行聚合SQL）
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository 复用 gorm 的连接池
func NewReportRepository(gdb *gorm.DB) (*ReportRepository, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	driver := gdb.Dialector.Name()
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	return &ReportRepository{db: sqlx.NewDb(sqlDB, driver)}, nil
}

// LineQuantities PO行各阶段数量
type LineQuantities struct {
	POLineID      string          `db:"po_line_id" json:"po_line_id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemCode      string          `db:"item_code" json:"item_code"`
	ItemName      string          `db:"item_name" json:"item_name"`
	UOM           string          `db:"uom" json:"uom"`
	OrderedQty    decimal.Decimal `db:"ordered_qty" json:"ordered_quantity"`
	ReceivedQty   decimal.Decimal `db:"received_qty" json:"received_quantity"`
	AcceptedQty   decimal.Decimal `db:"accepted_qty" json:"accepted_quantity"`
	RejectedQty   decimal.Decimal `db:"rejected_qty" json:"rejected_quantity"`
	DispatchedQty decimal.Decimal `db:"dispatched_qty" json:"dispatched_quantity"`
}

// round 数量列为4位小数，浮点库（sqlite）上的 SUM 结果按列精度还原
func (q *LineQuantities) round() {
	for _, d := range []*decimal.Decimal{&q.OrderedQty, &q.ReceivedQty, &q.AcceptedQty, &q.RejectedQty, &q.DispatchedQty} {
		*d = d.Round(4)
	}
}

const lineQuantitiesSQL = `
SELECT l.id AS po_line_id, l.item_id, l.item_code, l.item_name, l.uom, l.ordered_qty,
	COALESCE((SELECT SUM(m.received_qty) FROM scm_mr_lines m WHERE m.po_line_id = l.id), 0) AS received_qty,
	COALESCE((SELECT SUM(i.accepted_qty) FROM scm_inspection_lines i WHERE i.po_line_id = l.id), 0) AS accepted_qty,
	COALESCE((SELECT SUM(i.rejected_qty) FROM scm_inspection_lines i WHERE i.po_line_id = l.id), 0) AS rejected_qty,
	COALESCE((SELECT SUM(d.quantity_dispatched) FROM scm_dispatch_lines d
		JOIN scm_material_dispatches h ON h.id = d.dispatch_id
		WHERE h.reference_type = 'PO' AND h.reference_id = l.po_id
			AND h.status = 'DISPATCHED' AND d.item_id = l.item_id), 0) AS dispatched_qty
FROM scm_po_lines l`

// LineQuantities 汇总PO全部行的收货/检验/发料数量
func (r *ReportRepository) LineQuantities(ctx context.Context, poID string) ([]LineQuantities, error) {
	var rows []LineQuantities
	query := r.db.Rebind(lineQuantitiesSQL + " WHERE l.po_id = ? ORDER BY l.sort_order ASC")
	if err := r.db.SelectContext(ctx, &rows, query, poID); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].round()
	}
	return rows, nil
}

// LineQuantity 单个PO行的数量汇总
func (r *ReportRepository) LineQuantity(ctx context.Context, poLineID string) (*LineQuantities, error) {
	var row LineQuantities
	query := r.db.Rebind(lineQuantitiesSQL + " WHERE l.id = ?")
	if err := r.db.GetContext(ctx, &row, query, poLineID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	row.round()
	return &row, nil
}

// ReceiptSummary PO收货概况
type ReceiptSummary struct {
	MRCount        int    `db:"mr_count" json:"mr_count"`
	InspectedCount int    `db:"inspected_count" json:"inspected_count"`
	LatestMRStatus string `json:"latest_mr_status"`
}

// ReceiptSummary 统计PO下收货单数量与最新收货单状态
func (r *ReportRepository) ReceiptSummary(ctx context.Context, poID string) (*ReceiptSummary, error) {
	var summary ReceiptSummary
	query := r.db.Rebind(`SELECT COUNT(*) AS mr_count,
		COALESCE(SUM(CASE WHEN status = 'INSPECTED' THEN 1 ELSE 0 END), 0) AS inspected_count
		FROM scm_material_receipts WHERE po_id = ?`)
	if err := r.db.GetContext(ctx, &summary, query, poID); err != nil {
		return nil, err
	}

	if summary.MRCount > 0 {
		latest := r.db.Rebind(`SELECT status FROM scm_material_receipts
			WHERE po_id = ? ORDER BY created_at DESC, mr_number DESC LIMIT 1`)
		if err := r.db.GetContext(ctx, &summary.LatestMRStatus, latest, poID); err != nil {
			return nil, err
		}
	}
	return &summary, nil
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	PONumber     string     `json:"po_number" gorm:"size:32;uniqueIndex;not null"`
	VendorID     string     `json:"vendor_id" gorm:"size:32;not null;index"`
	VendorName   string     `json:"vendor_name" gorm:"size:200"`
	Status       string     `json:"status" gorm:"size:20;not null;default:DRAFT;index"` // DRAFT/SENT/CANCELLED
	ExpectedDate *time.Time `json:"expected_date"`
	Remarks      string     `json:"remarks" gorm:"type:text"`

	SentAt       *time.Time `json:"sent_at"`
	SentBy       string     `json:"sent_by" gorm:"size:32"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelledBy  string     `json:"cancelled_by" gorm:"size:32"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []POLine `json:"lines,omitempty" gorm:"foreignKey:POID"`
}

func (PurchaseOrder) TableName() string {
	return "scm_purchase_orders"
}

// PO状态
const (
	POStatusDraft     = "DRAFT"
	POStatusSent      = "SENT"
	POStatusCancelled = "CANCELLED"
)

// IsEditable 仅草稿可修改行项与供应商
func (po *PurchaseOrder) IsEditable() bool {
	return po.Status == POStatusDraft
}

// CanTransitionTo PO状态机
func (po *PurchaseOrder) CanTransitionTo(target string) bool {
	switch po.Status {
	case POStatusDraft:
		return target == POStatusSent || target == POStatusCancelled
	case POStatusSent:
		return target == POStatusCancelled
	}
	return false
}

// POLine PO行项
// ReceivedQty / DispatchedQty 为下游收货、发料的累计值，只由对应阶段在事务内条件更新
type POLine struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	POID          string          `json:"po_id" gorm:"size:32;not null;index;uniqueIndex:uk_po_line_item"`
	ItemID        string          `json:"item_id" gorm:"size:32;not null;uniqueIndex:uk_po_line_item"`
	ItemCode      string          `json:"item_code" gorm:"size:50"`
	ItemName      string          `json:"item_name" gorm:"size:200"`
	UOM           string          `json:"uom" gorm:"size:20;default:NOS"`
	OrderedQty    decimal.Decimal `json:"ordered_quantity" gorm:"type:decimal(18,4);not null"`
	Rate          decimal.Decimal `json:"rate" gorm:"type:decimal(18,4);not null;default:0"`
	ReceivedQty   decimal.Decimal `json:"received_quantity" gorm:"type:decimal(18,4);not null;default:0"`
	DispatchedQty decimal.Decimal `json:"dispatched_quantity" gorm:"type:decimal(18,4);not null;default:0"`
	SortOrder     int             `json:"sort_order" gorm:"default:0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (POLine) TableName() string {
	return "scm_po_lines"
}

// RemainingQty 剩余可收货数量
func (l *POLine) RemainingQty() decimal.Decimal {
	return l.OrderedQty.Sub(l.ReceivedQty)
}

// PendingDispatchQty 剩余可发料数量
func (l *POLine) PendingDispatchQty() decimal.Decimal {
	return l.OrderedQty.Sub(l.DispatchedQty)
}

// Amount 行金额
func (l *POLine) Amount() decimal.Decimal {
	return l.OrderedQty.Mul(l.Rate)
}

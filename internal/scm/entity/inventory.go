package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem 仓库库存（物料+仓库+库位唯一）
type InventoryItem struct {
	ID                string          `json:"id" gorm:"primaryKey;size:32"`
	ItemID            string          `json:"item_id" gorm:"size:32;not null;uniqueIndex:uk_inventory_location"`
	StoreID           string          `json:"store_id" gorm:"size:32;not null;uniqueIndex:uk_inventory_location;index"`
	BinID             string          `json:"bin_id" gorm:"size:32;not null;uniqueIndex:uk_inventory_location"`
	ItemCode          string          `json:"item_code" gorm:"size:50"`
	ItemName          string          `json:"item_name" gorm:"size:200"`
	UOM               string          `json:"uom" gorm:"size:20"`
	QuantityAvailable decimal.Decimal `json:"quantity_available" gorm:"type:decimal(18,4);not null;default:0"`
	LastMovedAt       *time.Time      `json:"last_moved_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "scm_inventory_items"
}

// 库存交易类型
const (
	TxTypeIn  = "IN"  // 放行入库
	TxTypeOut = "OUT" // 发料出库
)

// 单据类型
const (
	RefTypeGatePass = "GATE_PASS"
	RefTypeDispatch = "DISPATCH"
)

// InventoryTransaction 库存交易流水
// (reference_type, reference_line_id, transaction_type) 唯一，保证同一单据行只记账一次
type InventoryTransaction struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	InventoryItemID string          `json:"inventory_item_id" gorm:"size:32;not null;index"`
	ItemID          string          `json:"item_id" gorm:"size:32;not null;index"`
	StoreID         string          `json:"store_id" gorm:"size:32;not null"`
	BinID           string          `json:"bin_id" gorm:"size:32;not null"`
	TransactionType string          `json:"transaction_type" gorm:"size:20;not null;uniqueIndex:uk_inventory_tx_ref"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(18,4);not null"` // 正=入，负=出
	BalanceAfter    decimal.Decimal `json:"balance_after" gorm:"type:decimal(18,4);not null"`
	ReferenceType   string          `json:"reference_type" gorm:"size:50;not null;uniqueIndex:uk_inventory_tx_ref"`
	ReferenceID     string          `json:"reference_id" gorm:"size:32;not null;index"`
	ReferenceLineID string          `json:"reference_line_id" gorm:"size:32;not null;uniqueIndex:uk_inventory_tx_ref"`
	ReferenceCode   string          `json:"reference_code" gorm:"size:50"`
	CreatedBy       string          `json:"created_by" gorm:"size:64"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (InventoryTransaction) TableName() string {
	return "scm_inventory_transactions"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialDispatch 发料单
type MaterialDispatch struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	DispatchNumber string    `json:"dispatch_number" gorm:"size:32;uniqueIndex;not null"`
	DispatchDate   time.Time `json:"dispatch_date"`
	Status         string    `json:"status" gorm:"size:20;not null;default:DRAFT;index"` // DRAFT/DISPATCHED/CANCELLED
	ReferenceType  string    `json:"reference_type" gorm:"size:20;not null"`             // PO/SO/TRANSFER
	ReferenceID    string    `json:"reference_id" gorm:"size:50;not null;index"`
	WarehouseID    string    `json:"warehouse_id" gorm:"size:32;not null;index"`
	Remarks        string    `json:"remarks" gorm:"type:text"`

	// 收货方与运输
	ReceiverName    string `json:"receiver_name" gorm:"size:200"`
	ReceiverContact string `json:"receiver_contact" gorm:"size:20"`
	DeliveryAddress string `json:"delivery_address" gorm:"type:text"`
	VehicleNumber   string `json:"vehicle_number" gorm:"size:20"`
	DriverName      string `json:"driver_name" gorm:"size:100"`
	DriverContact   string `json:"driver_contact" gorm:"size:20"`
	EwayBillNumber  string `json:"eway_bill_number" gorm:"size:50"`

	IssuedAt     *time.Time `json:"issued_at"`
	IssuedBy     string     `json:"issued_by" gorm:"size:32"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelledBy  string     `json:"cancelled_by" gorm:"size:32"`
	CancelReason string     `json:"cancel_reason" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []DispatchLine `json:"line_items,omitempty" gorm:"foreignKey:DispatchID"`
}

func (MaterialDispatch) TableName() string {
	return "scm_material_dispatches"
}

// 发料状态
const (
	DispatchStatusDraft      = "DRAFT"
	DispatchStatusDispatched = "DISPATCHED"
	DispatchStatusCancelled  = "CANCELLED"
)

// 发料依据
const (
	DispatchRefPO       = "PO"
	DispatchRefSO       = "SO"
	DispatchRefTransfer = "TRANSFER"
)

// ValidDispatchReference 发料依据是否合法
func ValidDispatchReference(refType string) bool {
	switch refType {
	case DispatchRefPO, DispatchRefSO, DispatchRefTransfer:
		return true
	}
	return false
}

// DispatchLine 发料行
type DispatchLine struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:32"`
	DispatchID         string          `json:"dispatch_id" gorm:"size:32;not null;index"`
	InventoryItemID    string          `json:"inventory_item_id" gorm:"size:32;not null;index"`
	ItemID             string          `json:"item_id" gorm:"size:32;not null"`
	ItemCode           string          `json:"item_code" gorm:"size:50"`
	ItemName           string          `json:"item_name" gorm:"size:200"`
	UOM                string          `json:"uom" gorm:"size:20"`
	BatchNumber        string          `json:"batch_number" gorm:"size:50"`
	QuantityDispatched decimal.Decimal `json:"quantity_dispatched" gorm:"type:decimal(18,4);not null"`
	Remarks            string          `json:"remarks" gorm:"type:text"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (DispatchLine) TableName() string {
	return "scm_dispatch_lines"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialReceipt 来料收货单(MR)
type MaterialReceipt struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	MRNumber   string    `json:"mr_number" gorm:"size:32;uniqueIndex;not null"`
	POID       string    `json:"po_id" gorm:"size:32;not null;index"`
	StoreID    string    `json:"store_id" gorm:"size:32;index"`
	BinID      string    `json:"bin_id" gorm:"size:32"`
	Status     string    `json:"status" gorm:"size:20;not null;default:CREATED;index"` // CREATED/INSPECTED
	VehicleNo  string    `json:"vehicle_no" gorm:"size:20"`
	ChallanNo  string    `json:"challan_no" gorm:"size:50"`
	BillNo     string    `json:"bill_no" gorm:"size:50"`
	ReceivedBy string    `json:"received_by" gorm:"size:32"`
	Remarks    string    `json:"remarks" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Lines []MRLine `json:"lines,omitempty" gorm:"foreignKey:MRID"`
}

func (MaterialReceipt) TableName() string {
	return "scm_material_receipts"
}

// MR状态
const (
	MRStatusCreated   = "CREATED"
	MRStatusInspected = "INSPECTED"
)

// MRLine 收货行
type MRLine struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	MRID        string          `json:"mr_id" gorm:"size:32;not null;index;uniqueIndex:uk_mr_po_line"`
	POLineID    string          `json:"po_line_id" gorm:"size:32;not null;index;uniqueIndex:uk_mr_po_line"`
	ItemID      string          `json:"item_id" gorm:"size:32;not null"`
	ItemCode    string          `json:"item_code" gorm:"size:50"`
	ItemName    string          `json:"item_name" gorm:"size:200"`
	UOM         string          `json:"uom" gorm:"size:20"`
	ReceivedQty decimal.Decimal `json:"received_quantity" gorm:"type:decimal(18,4);not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (MRLine) TableName() string {
	return "scm_mr_lines"
}

// Attachment 收货单附件（送货单、发票扫描件）
type Attachment struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	EntityType  string    `json:"entity_type" gorm:"size:50;not null;index:idx_attachment_entity"`
	EntityID    string    `json:"entity_id" gorm:"size:32;not null;index:idx_attachment_entity"`
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	ObjectName  string    `json:"object_name" gorm:"size:500;not null"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "scm_attachments"
}

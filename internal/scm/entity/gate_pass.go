package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatePass 放行单：检验合格数量移交仓库
type GatePass struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	GatePassNumber string     `json:"gate_pass_number" gorm:"size:32;uniqueIndex;not null"`
	InspectionID   string     `json:"inspection_id" gorm:"size:32;not null;uniqueIndex"`
	MRID           string     `json:"mr_id" gorm:"size:32;not null;index"`
	POID           string     `json:"po_id" gorm:"size:32;not null;index"`
	StoreID        string     `json:"store_id" gorm:"size:32;index"`
	StoreStatus    string     `json:"store_status" gorm:"size:20;not null;default:PENDING;index"` // PENDING/SENT_TO_STORE/RECEIVED
	IssuedBy       string     `json:"issued_by" gorm:"size:100"`
	SentAt         *time.Time `json:"sent_at"`
	SentBy         string     `json:"sent_by" gorm:"size:32"`
	ReceivedAt     *time.Time `json:"received_at"`
	ReceivedBy     string     `json:"received_by" gorm:"size:32"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Items []GatePassItem `json:"items,omitempty" gorm:"foreignKey:GatePassID"`
}

func (GatePass) TableName() string {
	return "scm_gate_passes"
}

// 放行单仓库状态
const (
	GatePassPending     = "PENDING"
	GatePassSentToStore = "SENT_TO_STORE"
	GatePassReceived    = "RECEIVED"
)

// GatePassItem 放行行项
type GatePassItem struct {
	ID               string          `json:"id" gorm:"primaryKey;size:32"`
	GatePassID       string          `json:"gate_pass_id" gorm:"size:32;not null;index"`
	InspectionLineID string          `json:"inspection_line_id" gorm:"size:32;not null;uniqueIndex"`
	ItemID           string          `json:"item_id" gorm:"size:32;not null"`
	ItemCode         string          `json:"item_code" gorm:"size:50"`
	ItemName         string          `json:"item_name" gorm:"size:200"`
	UOM              string          `json:"uom" gorm:"size:20"`
	AcceptedQty      decimal.Decimal `json:"accepted_quantity" gorm:"type:decimal(18,4);not null"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (GatePassItem) TableName() string {
	return "scm_gate_pass_items"
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Inspection 来料检验（每张MR仅一次）
type Inspection struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	InspectionNumber string    `json:"inspection_number" gorm:"size:32;uniqueIndex;not null"`
	MRID             string    `json:"mr_id" gorm:"size:32;not null;uniqueIndex"`
	POID             string    `json:"po_id" gorm:"size:32;not null;index"`
	InspectedBy      string    `json:"inspected_by" gorm:"size:100;not null"`
	Result           string    `json:"result" gorm:"size:30;not null"` // FULLY_ACCEPTED/PARTIALLY_ACCEPTED/FULLY_REJECTED
	Remarks          string    `json:"remarks" gorm:"type:text"`
	InspectedAt      time.Time `json:"inspected_at"`
	CreatedBy        string    `json:"created_by" gorm:"size:32"`
	CreatedAt        time.Time `json:"created_at"`

	Lines []InspectionLine `json:"lines,omitempty" gorm:"foreignKey:InspectionID"`
}

func (Inspection) TableName() string {
	return "scm_inspections"
}

// 检验结论
const (
	InspectionResultFullyAccepted     = "FULLY_ACCEPTED"
	InspectionResultPartiallyAccepted = "PARTIALLY_ACCEPTED"
	InspectionResultFullyRejected     = "FULLY_REJECTED"
)

// InspectionLine 检验行
type InspectionLine struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	InspectionID string          `json:"inspection_id" gorm:"size:32;not null;index"`
	MRLineID     string          `json:"mr_line_id" gorm:"size:32;not null;uniqueIndex"`
	POLineID     string          `json:"po_line_id" gorm:"size:32;not null;index"`
	ItemID       string          `json:"item_id" gorm:"size:32;not null"`
	ItemCode     string          `json:"item_code" gorm:"size:50"`
	ItemName     string          `json:"item_name" gorm:"size:200"`
	UOM          string          `json:"uom" gorm:"size:20"`
	ReceivedQty  decimal.Decimal `json:"received_quantity" gorm:"type:decimal(18,4);not null"`
	AcceptedQty  decimal.Decimal `json:"accepted_quantity" gorm:"type:decimal(18,4);not null;default:0"`
	RejectedQty  decimal.Decimal `json:"rejected_quantity" gorm:"type:decimal(18,4);not null;default:0"`
	Remarks      string          `json:"remarks" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (InspectionLine) TableName() string {
	return "scm_inspection_lines"
}

// ResultOf 根据行数据汇总检验结论
func ResultOf(lines []InspectionLine) string {
	accepted, rejected := decimal.Zero, decimal.Zero
	for _, l := range lines {
		accepted = accepted.Add(l.AcceptedQty)
		rejected = rejected.Add(l.RejectedQty)
	}
	switch {
	case rejected.IsZero():
		return InspectionResultFullyAccepted
	case accepted.IsZero():
		return InspectionResultFullyRejected
	default:
		return InspectionResultPartiallyAccepted
	}
}

package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog 单据操作日志
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // po/mr/inspection/gate_pass/dispatch
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"size:50"`

	Action     string `json:"action" gorm:"size:50;not null"` // create/update/send/cancel/inspect/receive/issue
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`

	Content  string         `json:"content" gorm:"type:text"`
	Metadata datatypes.JSON `json:"metadata"`

	OperatorID   string    `json:"operator_id" gorm:"size:32"`
	OperatorName string    `json:"operator_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "scm_activity_logs"
}

// 日志实体类型
const (
	EntityPO         = "po"
	EntityMR         = "mr"
	EntityInspection = "inspection"
	EntityGatePass   = "gate_pass"
	EntityDispatch   = "dispatch"
)

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&PurchaseOrder{},
		&POLine{},
		&MaterialReceipt{},
		&MRLine{},
		&Attachment{},
		&Inspection{},
		&InspectionLine{},
		&GatePass{},
		&GatePassItem{},
		&InventoryItem{},
		&InventoryTransaction{},
		&MaterialDispatch{},
		&DispatchLine{},
		&ActivityLog{},
	}
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLogRepository 操作日志仓库
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create 创建操作日志
func (r *ActivityLogRepository) Create(ctx context.Context, log *entity.ActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByEntity 查询某单据的操作日志
func (r *ActivityLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	var items []entity.ActivityLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ActivityLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// LogActivity 便捷记录状态变更，写入失败不影响主流程
func (r *ActivityLogRepository) LogActivity(ctx context.Context, entityType, entityID, entityCode, action, fromStatus, toStatus, content, operatorID string, metadata map[string]interface{}) {
	log := &entity.ActivityLog{
		ID:         uuid.New().String()[:32],
		EntityType: entityType,
		EntityID:   entityID,
		EntityCode: entityCode,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Content:    content,
		OperatorID: operatorID,
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			log.Metadata = datatypes.JSON(raw)
		}
	}
	r.db.WithContext(ctx).Create(log)
}

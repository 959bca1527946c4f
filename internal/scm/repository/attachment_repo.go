package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"gorm.io/gorm"
)

// AttachmentRepository 附件仓库
type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *entity.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindByEntity 查询某单据的附件
func (r *AttachmentRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]entity.Attachment, error) {
	var items []entity.Attachment
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

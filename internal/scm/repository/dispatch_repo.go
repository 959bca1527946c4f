package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"gorm.io/gorm"
)

// DispatchRepository 发料单仓库
type DispatchRepository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// FindAll 查询发料单列表
func (r *DispatchRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialDispatch, int64, error) {
	var items []entity.MaterialDispatch
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.MaterialDispatch{})
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if refType := filters["reference_type"]; refType != "" {
		query = query.Where("reference_type = ?", refType)
	}
	if refID := filters["reference_id"]; refID != "" {
		query = query.Where("reference_id = ?", refID)
	}
	if warehouseID := filters["warehouse_id"]; warehouseID != "" {
		query = query.Where("warehouse_id = ?", warehouseID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Preload("Lines").Order("created_at DESC").Find(&items).Error
	return items, total, err
}

// FindByID 根据ID查找发料单
func (r *DispatchRepository) FindByID(ctx context.Context, id string) (*entity.MaterialDispatch, error) {
	var d entity.MaterialDispatch
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Create 创建发料单及行
func (r *DispatchRepository) Create(ctx context.Context, d *entity.MaterialDispatch) error {
	return duplicate(r.db.WithContext(ctx).Create(d).Error)
}

// UpdateDraft 更新草稿表头并替换行（仅 DRAFT 命中）
func (r *DispatchRepository) UpdateDraft(ctx context.Context, d *entity.MaterialDispatch) (bool, error) {
	db := r.db.WithContext(ctx)
	header := *d
	header.Lines = nil
	res := db.Model(&entity.MaterialDispatch{}).
		Where("id = ? AND status = ?", d.ID, entity.DispatchStatusDraft).
		Select("dispatch_date", "reference_type", "reference_id", "warehouse_id", "remarks",
			"receiver_name", "receiver_contact", "delivery_address", "vehicle_number",
			"driver_name", "driver_contact", "eway_bill_number", "updated_at").
		Updates(&header)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := db.Where("dispatch_id = ?", d.ID).Delete(&entity.DispatchLine{}).Error; err != nil {
		return false, err
	}
	if len(d.Lines) > 0 {
		if err := db.Create(&d.Lines).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

// DeleteDraft 删除草稿发料单（仅 DRAFT 命中）
func (r *DispatchRepository) DeleteDraft(ctx context.Context, id string) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("id = ? AND status = ?", id, entity.DispatchStatusDraft).Delete(&entity.MaterialDispatch{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, db.Where("dispatch_id = ?", id).Delete(&entity.DispatchLine{}).Error
}

// TransitionStatus 条件更新发料状态
func (r *DispatchRepository) TransitionStatus(ctx context.Context, id, from, to string, extra map[string]interface{}) (bool, error) {
	return transition(ctx, r.db, &entity.MaterialDispatch{}, "status", id, []string{from}, to, extra)
}

// GenerateCode 生成发料单编码 MD-{year}-{4位}
func (r *DispatchRepository) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(ctx, r.db, &entity.MaterialDispatch{}, "dispatch_number", "MD")
}

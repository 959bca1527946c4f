package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"gorm.io/gorm"
)

// MRRepository 收货单仓库
type MRRepository struct {
	db *gorm.DB
}

func NewMRRepository(db *gorm.DB) *MRRepository {
	return &MRRepository{db: db}
}

// FindAll 查询收货单列表
func (r *MRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialReceipt, int64, error) {
	var items []entity.MaterialReceipt
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.MaterialReceipt{})
	if poID := filters["po_id"]; poID != "" {
		query = query.Where("po_id = ?", poID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if storeID := filters["store_id"]; storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Lines").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找收货单（含行）
func (r *MRRepository) FindByID(ctx context.Context, id string) (*entity.MaterialReceipt, error) {
	var mr entity.MaterialReceipt
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&mr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &mr, nil
}

// Create 创建收货单及行
func (r *MRRepository) Create(ctx context.Context, mr *entity.MaterialReceipt) error {
	return duplicate(r.db.WithContext(ctx).Create(mr).Error)
}

// MarkInspected CREATED -> INSPECTED，已检验返回 false
func (r *MRRepository) MarkInspected(ctx context.Context, id string) (bool, error) {
	return transition(ctx, r.db, &entity.MaterialReceipt{}, "status", id, []string{entity.MRStatusCreated}, entity.MRStatusInspected, nil)
}

// HasReceipts PO是否已有收货数量 > 0 的收货行
func (r *MRRepository) HasReceipts(ctx context.Context, poID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.MRLine{}).
		Joins("JOIN scm_material_receipts ON scm_material_receipts.id = scm_mr_lines.mr_id").
		Where("scm_material_receipts.po_id = ? AND scm_mr_lines.received_qty > 0", poID).
		Count(&count).Error
	return count > 0, err
}

// GenerateCode 生成收货单编码 MR-{year}-{4位}
func (r *MRRepository) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(ctx, r.db, &entity.MaterialReceipt{}, "mr_number", "MR")
}

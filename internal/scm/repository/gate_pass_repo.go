package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"gorm.io/gorm"
)

// GatePassRepository 放行单仓库
type GatePassRepository struct {
	db *gorm.DB
}

func NewGatePassRepository(db *gorm.DB) *GatePassRepository {
	return &GatePassRepository{db: db}
}

// FindAll 查询放行单列表
func (r *GatePassRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.GatePass, int64, error) {
	var items []entity.GatePass
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.GatePass{})
	if status := filters["store_status"]; status != "" {
		query = query.Where("store_status = ?", status)
	}
	if storeID := filters["store_id"]; storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if poID := filters["po_id"]; poID != "" {
		query = query.Where("po_id = ?", poID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找放行单
func (r *GatePassRepository) FindByID(ctx context.Context, id string) (*entity.GatePass, error) {
	var gp entity.GatePass
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&gp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &gp, nil
}

// FindByInspectionID 根据检验单查找放行单
func (r *GatePassRepository) FindByInspectionID(ctx context.Context, inspectionID string) (*entity.GatePass, error) {
	var gp entity.GatePass
	err := r.db.WithContext(ctx).Preload("Items").Where("inspection_id = ?", inspectionID).First(&gp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &gp, nil
}

// Create 创建放行单及行项
func (r *GatePassRepository) Create(ctx context.Context, gp *entity.GatePass) error {
	return duplicate(r.db.WithContext(ctx).Create(gp).Error)
}

// TransitionStatus 条件更新仓库状态
func (r *GatePassRepository) TransitionStatus(ctx context.Context, id, from, to string, extra map[string]interface{}) (bool, error) {
	return transition(ctx, r.db, &entity.GatePass{}, "store_status", id, []string{from}, to, extra)
}

// CountByStatus 按仓库状态统计PO下放行单数量
func (r *GatePassRepository) CountByStatus(ctx context.Context, poID string) (map[string]int64, error) {
	var rows []struct {
		StoreStatus string
		Count       int64
	}
	err := r.db.WithContext(ctx).Model(&entity.GatePass{}).
		Select("store_status, COUNT(*) AS count").
		Where("po_id = ?", poID).
		Group("store_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.StoreStatus] = row.Count
	}
	return result, nil
}

// GenerateCode 生成放行单编码 GP-{year}-{4位}
func (r *GatePassRepository) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(ctx, r.db, &entity.GatePass{}, "gate_pass_number", "GP")
}

package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"gorm.io/gorm"
)

// InspectionRepository 检验仓库
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create 创建检验单及行
func (r *InspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	return duplicate(r.db.WithContext(ctx).Create(inspection).Error)
}

// FindByID 根据ID查找检验单
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&inspection).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inspection, nil
}

// FindByMRID 根据收货单查找检验单
func (r *InspectionRepository) FindByMRID(ctx context.Context, mrID string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).Preload("Lines").Where("mr_id = ?", mrID).First(&inspection).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inspection, nil
}

// FindByPO 查询PO下全部检验单
func (r *InspectionRepository) FindByPO(ctx context.Context, poID string) ([]entity.Inspection, error) {
	var items []entity.Inspection
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("po_id = ?", poID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// GenerateCode 生成检验编码 QC-{year}-{4位}
func (r *InspectionRepository) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(ctx, r.db, &entity.Inspection{}, "inspection_number", "QC")
}

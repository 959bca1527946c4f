package repository

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PORepository 采购订单仓库
type PORepository struct {
	db *gorm.DB
}

func NewPORepository(db *gorm.DB) *PORepository {
	return &PORepository{db: db}
}

// FindAll 查询采购订单列表
func (r *PORepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	var items []entity.PurchaseOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})

	if vendorID := filters["vendor_id"]; vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("LOWER(po_number) LIKE LOWER(?) OR LOWER(vendor_name) LIKE LOWER(?)", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找采购订单（含行项）
func (r *PORepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&po).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &po, nil
}

// Create 创建采购订单及行项
func (r *PORepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	return duplicate(r.db.WithContext(ctx).Create(po).Error)
}

// UpdateHeader 更新草稿表头
// 仅 DRAFT 命中
func (r *PORepository) UpdateHeader(ctx context.Context, po *entity.PurchaseOrder) (bool, error) {
	header := *po
	header.Lines = nil
	res := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("id = ? AND status = ?", po.ID, entity.POStatusDraft).
		Select("vendor_id", "vendor_name", "expected_date", "remarks", "updated_at").
		Updates(&header)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReplaceLines 替换草稿行项
func (r *PORepository) ReplaceLines(ctx context.Context, poID string, lines []entity.POLine) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("po_id = ?", poID).Delete(&entity.POLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.Create(&lines).Error
}

// TransitionStatus 条件更新PO状态
func (r *PORepository) TransitionStatus(ctx context.Context, id string, from []string, to string, extra map[string]interface{}) (bool, error) {
	return transition(ctx, r.db, &entity.PurchaseOrder{}, "status", id, from, to, extra)
}

// FindLineByID 查找PO行项
func (r *PORepository) FindLineByID(ctx context.Context, lineID string) (*entity.POLine, error) {
	var line entity.POLine
	if err := r.db.WithContext(ctx).Where("id = ?", lineID).First(&line).Error; err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

// FindLineByItem 按物料查找PO行项（PO内物料唯一）
func (r *PORepository) FindLineByItem(ctx context.Context, poID, itemID string) (*entity.POLine, error) {
	var line entity.POLine
	if err := r.db.WithContext(ctx).Where("po_id = ? AND item_id = ?", poID, itemID).First(&line).Error; err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

// lockLine 事务内读取并锁定PO行
func (r *PORepository) lockLine(ctx context.Context, lineID string) (*entity.POLine, error) {
	var line entity.POLine
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", lineID).First(&line).Error; err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

// AddReceived 累加收货数量，超过订购数量时不写入并返回 false
// 返回的行为写入后（或拒绝时）的当前值
func (r *PORepository) AddReceived(ctx context.Context, lineID string, qty decimal.Decimal) (*entity.POLine, bool, error) {
	line, err := r.lockLine(ctx, lineID)
	if err != nil {
		return nil, false, err
	}
	next := line.ReceivedQty.Add(qty)
	if next.GreaterThan(line.OrderedQty) {
		return line, false, nil
	}
	if err := swapQuantity(ctx, r.db, &entity.POLine{}, lineID, "received_qty", line.ReceivedQty, next, nil); err != nil {
		return nil, false, err
	}
	line.ReceivedQty = next
	return line, true, nil
}

// AddDispatched 累加发料数量，超过订购数量时不写入并返回 false
func (r *PORepository) AddDispatched(ctx context.Context, lineID string, qty decimal.Decimal) (*entity.POLine, bool, error) {
	line, err := r.lockLine(ctx, lineID)
	if err != nil {
		return nil, false, err
	}
	next := line.DispatchedQty.Add(qty)
	if next.GreaterThan(line.OrderedQty) {
		return line, false, nil
	}
	if err := swapQuantity(ctx, r.db, &entity.POLine{}, lineID, "dispatched_qty", line.DispatchedQty, next, nil); err != nil {
		return nil, false, err
	}
	line.DispatchedQty = next
	return line, true, nil
}

// ReleaseDispatched 发料单作废时释放PO待发数量，不会减到负数
func (r *PORepository) ReleaseDispatched(ctx context.Context, lineID string, qty decimal.Decimal) error {
	line, err := r.lockLine(ctx, lineID)
	if err != nil {
		return err
	}
	next := line.DispatchedQty.Sub(qty)
	if next.IsNegative() {
		next = decimal.Zero
	}
	return swapQuantity(ctx, r.db, &entity.POLine{}, lineID, "dispatched_qty", line.DispatchedQty, next, nil)
}

// GenerateCode 生成PO编码 PO-{year}-{4位}
func (r *PORepository) GenerateCode(ctx context.Context) (string, error) {
	return generateCode(ctx, r.db, &entity.PurchaseOrder{}, "po_number", "PO")
}

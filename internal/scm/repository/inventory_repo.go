package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository 库存仓库
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// FindAll 查询库存列表
func (r *InventoryRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryItem, int64, error) {
	var items []entity.InventoryItem
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{})
	if storeID := filters["store_id"]; storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if binID := filters["bin_id"]; binID != "" {
		query = query.Where("bin_id = ?", binID)
	}
	if itemID := filters["item_id"]; itemID != "" {
		query = query.Where("item_id = ?", itemID)
	}
	if filters["in_stock"] == "true" {
		query = query.Where("quantity_available > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Order("store_id ASC, item_code ASC, bin_id ASC").Find(&items).Error
	return items, total, err
}

// FindByID 根据ID查找库存
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindByLocation 按物料+仓库+库位查找库存
func (r *InventoryRepository) FindByLocation(ctx context.Context, itemID, storeID, binID string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND store_id = ? AND bin_id = ?", itemID, storeID, binID).
		First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// Credit 入账：库位不存在则先建零库存记录，再在行锁内累加
func (r *InventoryRepository) Credit(ctx context.Context, seed *entity.InventoryItem, qty decimal.Decimal) (*entity.InventoryItem, error) {
	db := r.db.WithContext(ctx)
	now := time.Now()

	row := entity.InventoryItem{
		ID:                uuid.New().String()[:32],
		ItemID:            seed.ItemID,
		StoreID:           seed.StoreID,
		BinID:             seed.BinID,
		ItemCode:          seed.ItemCode,
		ItemName:          seed.ItemName,
		UOM:               seed.UOM,
		QuantityAvailable: decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}, {Name: "store_id"}, {Name: "bin_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	var item entity.InventoryItem
	err = forUpdate(db).
		Where("item_id = ? AND store_id = ? AND bin_id = ?", seed.ItemID, seed.StoreID, seed.BinID).
		First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}

	next := item.QuantityAvailable.Add(qty)
	err = swapQuantity(ctx, r.db, &entity.InventoryItem{}, item.ID, "quantity_available", item.QuantityAvailable, next, map[string]interface{}{
		"last_moved_at": now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, err
	}
	item.QuantityAvailable = next
	item.LastMovedAt = &now
	item.UpdatedAt = now
	return &item, nil
}

// Debit 出账：可用数量不足时不写入并返回 false
// 返回的库存为扣减后（或拒绝时）的当前值
func (r *InventoryRepository) Debit(ctx context.Context, id string, qty decimal.Decimal) (*entity.InventoryItem, bool, error) {
	var item entity.InventoryItem
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, false, notFound(err)
	}
	if item.QuantityAvailable.LessThan(qty) {
		return &item, false, nil
	}

	now := time.Now()
	next := item.QuantityAvailable.Sub(qty)
	err := swapQuantity(ctx, r.db, &entity.InventoryItem{}, item.ID, "quantity_available", item.QuantityAvailable, next, map[string]interface{}{
		"last_moved_at": now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, false, err
	}
	item.QuantityAvailable = next
	item.LastMovedAt = &now
	item.UpdatedAt = now
	return &item, true, nil
}

// CreateTransaction 记录库存流水
func (r *InventoryRepository) CreateTransaction(ctx context.Context, tx *entity.InventoryTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

// FindTransactions 查询库存流水
func (r *InventoryRepository) FindTransactions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryTransaction, int64, error) {
	var items []entity.InventoryTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.InventoryTransaction{})
	if id := filters["inventory_item_id"]; id != "" {
		query = query.Where("inventory_item_id = ?", id)
	}
	if storeID := filters["store_id"]; storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if refType := filters["reference_type"]; refType != "" {
		query = query.Where("reference_type = ?", refType)
	}
	if refID := filters["reference_id"]; refID != "" {
		query = query.Where("reference_id = ?", refID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Order("created_at ASC").Find(&items).Error
	return items, total, err
}

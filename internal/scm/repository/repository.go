package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale 数量行在读取后被并发修改
	ErrStale = errors.New("row modified concurrently")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("duplicate key")
)

// Repositories SCM仓库集合
type Repositories struct {
	db *gorm.DB

	PO          *PORepository
	MR          *MRRepository
	Inspection  *InspectionRepository
	GatePass    *GatePassRepository
	Inventory   *InventoryRepository
	Dispatch    *DispatchRepository
	Attachment  *AttachmentRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建SCM仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		PO:          NewPORepository(db),
		MR:          NewMRRepository(db),
		Inspection:  NewInspectionRepository(db),
		GatePass:    NewGatePassRepository(db),
		Inventory:   NewInventoryRepository(db),
		Dispatch:    NewDispatchRepository(db),
		Attachment:  NewAttachmentRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// WithTx 返回绑定到事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

// Transaction 在单个数据库事务内执行
func (r *Repositories) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// DB 底层连接（供报表等只读查询使用）
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// generateCode 生成单据编码 {prefix}-{year}-{4位}
func generateCode(ctx context.Context, db *gorm.DB, model interface{}, column, prefix string) (string, error) {
	year := time.Now().Format("2006")
	head := fmt.Sprintf("%s-%s-", prefix, year)

	var maxCode string
	err := db.WithContext(ctx).
		Model(model).
		Select(fmt.Sprintf("COALESCE(MAX(%s), '')", column)).
		Where(column+" LIKE ?", head+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, head+"%04d", &seq)
	}
	seq++
	return fmt.Sprintf("%s%04d", head, seq), nil
}

// transition 按当前状态条件更新，返回是否命中
// 并发下只有一个调用能看到 RowsAffected == 1
func transition(ctx context.Context, db *gorm.DB, model interface{}, column, id string, from []string, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		column:       to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).Model(model).
		Where("id = ? AND "+column+" IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// forUpdate 事务内加行锁读取；sqlite 单写连接本身串行，不支持 FOR UPDATE
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// swapQuantity 把数量列从 old 写成 next，old 已变化返回 ErrStale
func swapQuantity(ctx context.Context, db *gorm.DB, model interface{}, id, column string, old, next decimal.Decimal, extra map[string]interface{}) error {
	updates := map[string]interface{}{column: next}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).Model(model).
		Where("id = ? AND "+column+" = ?", id, old).
		UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrStale
	}
	return nil
}

// duplicate 唯一约束冲突统一为 ErrDuplicate
func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
)

// ItemLocation 放行行项入库位置
type ItemLocation struct {
	GatePassItemID string `json:"gate_pass_item_id" binding:"required"`
	StoreID        string `json:"store_id"`
	BinID          string `json:"bin_id"`
}

// ReceiveGatePassRequest 仓库接收放行单请求
// StoreID/BinID 为未单独指定位置的行项的默认位置
type ReceiveGatePassRequest struct {
	StoreID string         `json:"store_id"`
	BinID   string         `json:"bin_id"`
	Items   []ItemLocation `json:"items" binding:"omitempty,dive"`
}

// ReceiveOutcome 入库结果
type ReceiveOutcome struct {
	GatePass  *entity.GatePass       `json:"gate_pass"`
	Inventory []entity.InventoryItem `json:"inventory"`
}

// resolveLocations 为放行单每个行项确定非空的仓库+库位
func resolveLocations(gp *entity.GatePass, req *ReceiveGatePassRequest) (map[string]ItemLocation, error) {
	explicit := make(map[string]ItemLocation, len(req.Items))
	for i, loc := range req.Items {
		if _, dup := explicit[loc.GatePassItemID]; dup {
			return nil, ValidationError(fmt.Sprintf("items[%d].gate_pass_item_id", i), "放行行项重复: %s", loc.GatePassItemID)
		}
		explicit[loc.GatePassItemID] = loc
	}

	known := make(map[string]bool, len(gp.Items))
	result := make(map[string]ItemLocation, len(gp.Items))
	for _, item := range gp.Items {
		known[item.ID] = true
		loc := explicit[item.ID]
		loc.GatePassItemID = item.ID
		if strings.TrimSpace(loc.StoreID) == "" {
			loc.StoreID = firstNonEmpty(req.StoreID, gp.StoreID)
		}
		if strings.TrimSpace(loc.BinID) == "" {
			loc.BinID = req.BinID
		}
		loc.StoreID = strings.TrimSpace(loc.StoreID)
		loc.BinID = strings.TrimSpace(loc.BinID)
		if loc.StoreID == "" || loc.BinID == "" {
			return nil, ValidationError("items", "放行行项%s(%s)未指定仓库与库位", item.ItemCode, item.ID)
		}
		if err := checkLengths(fieldLimit{"store_id", loc.StoreID, 32}, fieldLimit{"bin_id", loc.BinID, 32}); err != nil {
			return nil, err
		}
		result[item.ID] = loc
	}
	for id := range explicit {
		if !known[id] {
			return nil, NotFoundError("items", "放行行项不属于该放行单: %s", id)
		}
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ReceiveGatePass 仓库接收放行单：状态翻转与全部行项入账在同一事务内，重复接收返回 ConflictError
func (s *WorkflowService) ReceiveGatePass(ctx context.Context, userID, gatePassID string, req *ReceiveGatePassRequest) (*ReceiveOutcome, error) {
	if req == nil {
		req = &ReceiveGatePassRequest{}
	}
	var gp *entity.GatePass
	credited := make([]entity.InventoryItem, 0)

	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		gp, err = repos.GatePass.FindByID(ctx, gatePassID)
		if err != nil {
			return mapNotFound(err, "id", "放行单", gatePassID)
		}
		if gp.StoreStatus != entity.GatePassSentToStore {
			return ConflictError("store_status", "放行单状态为%s，不能入库", gp.StoreStatus)
		}

		locations, err := resolveLocations(gp, req)
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := repos.GatePass.TransitionStatus(ctx, gp.ID, entity.GatePassSentToStore, entity.GatePassReceived, map[string]interface{}{
			"received_at": now,
			"received_by": userID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("store_status", "放行单已被接收")
		}

		for _, item := range gp.Items {
			loc := locations[item.ID]
			inv, err := repos.Inventory.Credit(ctx, &entity.InventoryItem{
				ItemID:   item.ItemID,
				StoreID:  loc.StoreID,
				BinID:    loc.BinID,
				ItemCode: item.ItemCode,
				ItemName: item.ItemName,
				UOM:      item.UOM,
			}, item.AcceptedQty)
			if err != nil {
				return fmt.Errorf("credit inventory: %w", err)
			}
			err = repos.Inventory.CreateTransaction(ctx, &entity.InventoryTransaction{
				InventoryItemID: inv.ID,
				ItemID:          item.ItemID,
				StoreID:         loc.StoreID,
				BinID:           loc.BinID,
				TransactionType: entity.TxTypeIn,
				Quantity:        item.AcceptedQty,
				BalanceAfter:    inv.QuantityAvailable,
				ReferenceType:   entity.RefTypeGatePass,
				ReferenceID:     gp.ID,
				ReferenceLineID: item.ID,
				ReferenceCode:   gp.GatePassNumber,
				CreatedBy:       userID,
			})
			if err != nil {
				return fmt.Errorf("record inventory transaction: %w", err)
			}
			credited = append(credited, *inv)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("inventory.receive", err)
	}

	for _, item := range gp.Items {
		s.quantity("stored", item.AcceptedQty)
	}
	s.transitioned(ctx, entity.EntityGatePass, gp.ID, gp.GatePassNumber, "receive", entity.GatePassSentToStore, entity.GatePassReceived, userID, nil)

	updated, err := s.repos.GatePass.FindByID(ctx, gp.ID)
	if err != nil {
		return nil, err
	}
	return &ReceiveOutcome{GatePass: updated, Inventory: credited}, nil
}

// GetInventoryItem 获取库存
func (s *WorkflowService) GetInventoryItem(ctx context.Context, id string) (*entity.InventoryItem, error) {
	item, err := s.repos.Inventory.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "库存", id)
	}
	return item, nil
}

// ListInventory 库存列表
func (s *WorkflowService) ListInventory(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryItem, int64, error) {
	return s.repos.Inventory.FindAll(ctx, page, pageSize, filters)
}

// ListInventoryTransactions 库存流水
func (s *WorkflowService) ListInventoryTransactions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryTransaction, int64, error) {
	return s.repos.Inventory.FindTransactions(ctx, page, pageSize, filters)
}

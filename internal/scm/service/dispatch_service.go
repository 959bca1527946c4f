package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DispatchLineRequest 发料行请求
type DispatchLineRequest struct {
	InventoryItemID    string          `json:"inventory_item_id" binding:"required"`
	ItemID             string          `json:"item_id"`
	BatchNumber        string          `json:"batch_number"`
	QuantityDispatched decimal.Decimal `json:"quantity_dispatched"`
	Remarks            string          `json:"remarks"`
}

// DispatchRequest 创建/修改草稿发料单请求
type DispatchRequest struct {
	DispatchDate    string                `json:"dispatch_date"`
	ReferenceType   string                `json:"reference_type" binding:"required"`
	ReferenceID     string                `json:"reference_id" binding:"required"`
	WarehouseID     string                `json:"warehouse_id" binding:"required"`
	Remarks         string                `json:"remarks"`
	ReceiverName    string                `json:"receiver_name"`
	ReceiverContact string                `json:"receiver_contact"`
	DeliveryAddress string                `json:"delivery_address"`
	VehicleNumber   string                `json:"vehicle_number"`
	DriverName      string                `json:"driver_name"`
	DriverContact   string                `json:"driver_contact"`
	EwayBillNumber  string                `json:"eway_bill_number"`
	IssueNow        bool                  `json:"issue_now"`
	Lines           []DispatchLineRequest `json:"line_items" binding:"required,dive"`
}

// CancelDispatchRequest 作废发料单请求
type CancelDispatchRequest struct {
	Reason string `json:"reason"`
}

// applyDispatchRequest 校验请求并填充表头与行（行物料取自库存记录）
func (s *WorkflowService) applyDispatchRequest(ctx context.Context, repos *repository.Repositories, d *entity.MaterialDispatch, req *DispatchRequest) error {
	refType := strings.ToUpper(strings.TrimSpace(req.ReferenceType))
	if !entity.ValidDispatchReference(refType) {
		return ValidationError("reference_type", "发料依据必须为 PO/SO/TRANSFER")
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		return ValidationError("reference_id", "发料依据单号不能为空")
	}
	if strings.TrimSpace(req.WarehouseID) == "" {
		return ValidationError("warehouse_id", "发料仓库不能为空")
	}
	if len(req.Lines) == 0 {
		return ValidationError("line_items", "发料单至少需要一行")
	}
	err := checkLengths(
		fieldLimit{"reference_id", req.ReferenceID, 50},
		fieldLimit{"warehouse_id", req.WarehouseID, 32},
		fieldLimit{"receiver_name", req.ReceiverName, 200},
		fieldLimit{"receiver_contact", req.ReceiverContact, 20},
		fieldLimit{"vehicle_number", req.VehicleNumber, 20},
		fieldLimit{"driver_name", req.DriverName, 100},
		fieldLimit{"driver_contact", req.DriverContact, 20},
		fieldLimit{"eway_bill_number", req.EwayBillNumber, 50},
	)
	if err != nil {
		return err
	}

	dispatchDate := s.now()
	if req.DispatchDate != "" {
		t, err := time.Parse("2006-01-02", req.DispatchDate)
		if err != nil {
			return ValidationError("dispatch_date", "日期格式错误，应为 YYYY-MM-DD")
		}
		dispatchDate = t
	}

	var po *entity.PurchaseOrder
	if refType == entity.DispatchRefPO {
		var err error
		po, err = repos.PO.FindByID(ctx, req.ReferenceID)
		if err != nil {
			return mapNotFound(err, "reference_id", "采购订单", req.ReferenceID)
		}
	}

	d.DispatchDate = dispatchDate
	d.ReferenceType = refType
	d.ReferenceID = req.ReferenceID
	d.WarehouseID = req.WarehouseID
	d.Remarks = req.Remarks
	d.ReceiverName = req.ReceiverName
	d.ReceiverContact = req.ReceiverContact
	d.DeliveryAddress = req.DeliveryAddress
	d.VehicleNumber = req.VehicleNumber
	d.DriverName = req.DriverName
	d.DriverContact = req.DriverContact
	d.EwayBillNumber = req.EwayBillNumber
	d.UpdatedAt = s.now()
	d.Lines = make([]entity.DispatchLine, 0, len(req.Lines))

	for i, l := range req.Lines {
		field := fmt.Sprintf("line_items[%d]", i)
		if !l.QuantityDispatched.IsPositive() {
			return ValidationError(field+".quantity_dispatched", "发料数量必须大于0")
		}
		if err := checkQuantity(field+".quantity_dispatched", l.QuantityDispatched); err != nil {
			return err
		}
		if err := checkLengths(fieldLimit{field + ".batch_number", l.BatchNumber, 50}); err != nil {
			return err
		}
		inv, err := repos.Inventory.FindByID(ctx, l.InventoryItemID)
		if err != nil {
			return mapNotFound(err, field+".inventory_item_id", "库存", l.InventoryItemID)
		}
		if l.ItemID != "" && l.ItemID != inv.ItemID {
			return ValidationError(field+".item_id", "物料与库存记录不一致: %s", l.ItemID)
		}
		if inv.StoreID != d.WarehouseID {
			return ValidationError(field+".inventory_item_id", "库存不在发料仓库%s中", d.WarehouseID)
		}
		if po != nil {
			if _, err := repos.PO.FindLineByItem(ctx, po.ID, inv.ItemID); err != nil {
				return mapNotFound(err, field+".item_id", "采购订单物料", inv.ItemID)
			}
		}
		d.Lines = append(d.Lines, entity.DispatchLine{
			ID:                 uuid.New().String()[:32],
			DispatchID:         d.ID,
			InventoryItemID:    inv.ID,
			ItemID:             inv.ItemID,
			ItemCode:           inv.ItemCode,
			ItemName:           inv.ItemName,
			UOM:                inv.UOM,
			BatchNumber:        l.BatchNumber,
			QuantityDispatched: l.QuantityDispatched,
			Remarks:            l.Remarks,
		})
	}
	return nil
}

// CreateDispatch 创建草稿发料单；IssueNow 时同一事务内直接发料
func (s *WorkflowService) CreateDispatch(ctx context.Context, userID string, req *DispatchRequest) (*entity.MaterialDispatch, error) {
	now := s.now()
	d := &entity.MaterialDispatch{
		ID:        uuid.New().String()[:32],
		Status:    entity.DispatchStatusDraft,
		CreatedBy: userID,
		CreatedAt: now,
	}

	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		if err := s.applyDispatchRequest(ctx, repos, d, req); err != nil {
			return err
		}
		code, err := repos.Dispatch.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		d.DispatchNumber = code
		if err := repos.Dispatch.Create(ctx, d); err != nil {
			return err
		}
		if req.IssueNow {
			return s.issue(ctx, repos, d, userID)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("dispatch.create", err)
	}

	s.transitioned(ctx, entity.EntityDispatch, d.ID, d.DispatchNumber, "create", "", entity.DispatchStatusDraft, userID, nil)
	if req.IssueNow {
		s.dispatched(ctx, d, userID)
	}
	return s.repos.Dispatch.FindByID(ctx, d.ID)
}

// UpdateDispatch 修改草稿发料单
func (s *WorkflowService) UpdateDispatch(ctx context.Context, userID, id string, req *DispatchRequest) (*entity.MaterialDispatch, error) {
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		d, err := repos.Dispatch.FindByID(ctx, id)
		if err != nil {
			return mapNotFound(err, "id", "发料单", id)
		}
		if d.Status != entity.DispatchStatusDraft {
			return InvalidStateError("status", "发料单状态为%s，仅草稿可修改", d.Status)
		}
		if err := s.applyDispatchRequest(ctx, repos, d, req); err != nil {
			return err
		}
		ok, err := repos.Dispatch.UpdateDraft(ctx, d)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("status", "发料单状态已变更")
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("dispatch.update", err)
	}

	d, err := s.repos.Dispatch.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.repos.ActivityLog.LogActivity(ctx, entity.EntityDispatch, d.ID, d.DispatchNumber, "update", d.Status, d.Status, "", userID, nil)
	return d, nil
}

// DeleteDispatch 删除草稿发料单；草稿不走作废流程
func (s *WorkflowService) DeleteDispatch(ctx context.Context, userID, id string) error {
	d, err := s.repos.Dispatch.FindByID(ctx, id)
	if err != nil {
		return s.rejected("dispatch.delete", mapNotFound(err, "id", "发料单", id))
	}
	if d.Status != entity.DispatchStatusDraft {
		return s.rejected("dispatch.delete", InvalidStateError("status", "发料单状态为%s，仅草稿可删除", d.Status))
	}
	ok, err := s.repos.Dispatch.DeleteDraft(ctx, id)
	if err != nil {
		return fmt.Errorf("delete dispatch: %w", err)
	}
	if !ok {
		return s.rejected("dispatch.delete", ConflictError("status", "发料单状态已变更"))
	}
	s.transitioned(ctx, entity.EntityDispatch, d.ID, d.DispatchNumber, "delete", d.Status, "", userID, nil)
	return nil
}

// IssueDispatch 发料：DRAFT -> DISPATCHED，逐行扣减库存（PO依据时同时占用PO待发数量）
func (s *WorkflowService) IssueDispatch(ctx context.Context, userID, id string) (*entity.MaterialDispatch, error) {
	var d *entity.MaterialDispatch
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		d, err = repos.Dispatch.FindByID(ctx, id)
		if err != nil {
			return mapNotFound(err, "id", "发料单", id)
		}
		if d.Status != entity.DispatchStatusDraft {
			return InvalidStateError("status", "发料单状态为%s，不能发料", d.Status)
		}
		return s.issue(ctx, repos, d, userID)
	})
	if err != nil {
		return nil, s.rejected("dispatch.issue", err)
	}

	s.dispatched(ctx, d, userID)
	return s.repos.Dispatch.FindByID(ctx, id)
}

// issue 事务内执行发料；先翻转状态占住发料单，再按条件扣减
func (s *WorkflowService) issue(ctx context.Context, repos *repository.Repositories, d *entity.MaterialDispatch, userID string) error {
	if len(d.Lines) == 0 {
		return ValidationError("line_items", "发料单至少需要一行")
	}

	now := s.now()
	ok, err := repos.Dispatch.TransitionStatus(ctx, d.ID, entity.DispatchStatusDraft, entity.DispatchStatusDispatched, map[string]interface{}{
		"issued_at": now,
		"issued_by": userID,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ConflictError("status", "发料单状态已变更")
	}

	var po *entity.PurchaseOrder
	if d.ReferenceType == entity.DispatchRefPO {
		po, err = repos.PO.FindByID(ctx, d.ReferenceID)
		if err != nil {
			return mapNotFound(err, "reference_id", "采购订单", d.ReferenceID)
		}
		if po.Status == entity.POStatusCancelled {
			return InvalidStateError("reference_id", "采购订单已取消，不能按其发料")
		}
	}

	for i, line := range d.Lines {
		field := fmt.Sprintf("line_items[%d]", i)

		inv, ok, err := repos.Inventory.Debit(ctx, line.InventoryItemID, line.QuantityDispatched)
		if err != nil {
			return mapNotFound(err, field+".inventory_item_id", "库存", line.InventoryItemID)
		}
		if !ok {
			return ValidationError(field+".quantity_dispatched", "quantity exceeds available: %s > %s",
				line.QuantityDispatched.String(), inv.QuantityAvailable.String())
		}

		if po != nil {
			poLine, err := repos.PO.FindLineByItem(ctx, po.ID, line.ItemID)
			if err != nil {
				return mapNotFound(err, field+".item_id", "采购订单物料", line.ItemID)
			}
			current, ok, err := repos.PO.AddDispatched(ctx, poLine.ID, line.QuantityDispatched)
			if err != nil {
				return err
			}
			if !ok {
				return ValidationError(field+".quantity_dispatched", "quantity exceeds PO pending: %s > %s",
					line.QuantityDispatched.String(), current.PendingDispatchQty().String())
			}
		}

		err = repos.Inventory.CreateTransaction(ctx, &entity.InventoryTransaction{
			InventoryItemID: inv.ID,
			ItemID:          inv.ItemID,
			StoreID:         inv.StoreID,
			BinID:           inv.BinID,
			TransactionType: entity.TxTypeOut,
			Quantity:        line.QuantityDispatched.Neg(),
			BalanceAfter:    inv.QuantityAvailable,
			ReferenceType:   entity.RefTypeDispatch,
			ReferenceID:     d.ID,
			ReferenceLineID: line.ID,
			ReferenceCode:   d.DispatchNumber,
			CreatedBy:       userID,
		})
		if err != nil {
			return fmt.Errorf("record inventory transaction: %w", err)
		}
	}
	return nil
}

func (s *WorkflowService) dispatched(ctx context.Context, d *entity.MaterialDispatch, userID string) {
	for _, line := range d.Lines {
		s.quantity("dispatched", line.QuantityDispatched)
	}
	s.transitioned(ctx, entity.EntityDispatch, d.ID, d.DispatchNumber, "issue", entity.DispatchStatusDraft, entity.DispatchStatusDispatched, userID, map[string]interface{}{
		"warehouse_id": d.WarehouseID,
	})
}

// CancelDispatch 作废已发料单：原因至少 N 个字符；不回补库存，仅释放PO待发数量
func (s *WorkflowService) CancelDispatch(ctx context.Context, userID, id string, req *CancelDispatchRequest) (*entity.MaterialDispatch, error) {
	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < s.opts.CancelReasonMinLength {
		return nil, s.rejected("dispatch.cancel", ValidationError("reason", "作废原因至少%d个字符", s.opts.CancelReasonMinLength))
	}

	var d *entity.MaterialDispatch
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		d, err = repos.Dispatch.FindByID(ctx, id)
		if err != nil {
			return mapNotFound(err, "id", "发料单", id)
		}
		switch d.Status {
		case entity.DispatchStatusDraft:
			return InvalidStateError("status", "草稿发料单不能作废，请直接删除")
		case entity.DispatchStatusCancelled:
			return InvalidStateError("status", "发料单已作废")
		}

		ok, err := repos.Dispatch.TransitionStatus(ctx, d.ID, entity.DispatchStatusDispatched, entity.DispatchStatusCancelled, map[string]interface{}{
			"cancelled_at":  s.now(),
			"cancelled_by":  userID,
			"cancel_reason": reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("status", "发料单状态已变更")
		}

		if d.ReferenceType != entity.DispatchRefPO {
			return nil
		}
		for _, line := range d.Lines {
			poLine, err := repos.PO.FindLineByItem(ctx, d.ReferenceID, line.ItemID)
			if err != nil {
				return mapNotFound(err, "reference_id", "采购订单物料", line.ItemID)
			}
			if err := repos.PO.ReleaseDispatched(ctx, poLine.ID, line.QuantityDispatched); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("dispatch.cancel", err)
	}

	s.transitioned(ctx, entity.EntityDispatch, d.ID, d.DispatchNumber, "cancel", entity.DispatchStatusDispatched, entity.DispatchStatusCancelled, userID, map[string]interface{}{
		"reason": reason,
	})
	return s.repos.Dispatch.FindByID(ctx, id)
}

// GetDispatch 获取发料单
func (s *WorkflowService) GetDispatch(ctx context.Context, id string) (*entity.MaterialDispatch, error) {
	d, err := s.repos.Dispatch.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "发料单", id)
	}
	return d, nil
}

// ListDispatches 发料单列表
func (s *WorkflowService) ListDispatches(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialDispatch, int64, error) {
	return s.repos.Dispatch.FindAll(ctx, page, pageSize, filters)
}

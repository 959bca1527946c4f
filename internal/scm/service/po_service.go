package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// POLineRequest PO行项请求
type POLineRequest struct {
	ItemID          string          `json:"item_id" binding:"required"`
	ItemCode        string          `json:"item_code"`
	ItemName        string          `json:"item_name"`
	UOM             string          `json:"uom"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity"`
	Rate            decimal.Decimal `json:"rate"`
}

// CreatePORequest 创建草稿PO请求
type CreatePORequest struct {
	VendorID     string          `json:"vendor_id" binding:"required"`
	VendorName   string          `json:"vendor_name"`
	ExpectedDate string          `json:"expected_date"`
	Remarks      string          `json:"remarks"`
	Lines        []POLineRequest `json:"lines" binding:"required,dive"`
}

// UpdatePORequest 修改草稿PO请求，Lines 为空表示不修改行项
type UpdatePORequest struct {
	VendorID     *string         `json:"vendor_id"`
	VendorName   *string         `json:"vendor_name"`
	ExpectedDate *string         `json:"expected_date"`
	Remarks      *string         `json:"remarks"`
	Lines        []POLineRequest `json:"lines" binding:"omitempty,dive"`
}

// CancelPORequest 取消PO请求
type CancelPORequest struct {
	Reason string `json:"reason"`
}

// RemainingQuantity PO行剩余可收货数量
type RemainingQuantity struct {
	POLineID          string          `json:"po_line_id"`
	ItemID            string          `json:"item_id"`
	OrderedQuantity   decimal.Decimal `json:"ordered_quantity"`
	ReceivedQuantity  decimal.Decimal `json:"received_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
}

// TrackingLine PO行全链路数量
type TrackingLine struct {
	repository.LineQuantities
	RemainingQty decimal.Decimal `json:"remaining_quantity"`
	PendingQty   decimal.Decimal `json:"pending_quantity"`
}

// POTracking PO跟踪汇总
type POTracking struct {
	POID           string           `json:"po_id"`
	PONumber       string           `json:"po_number"`
	Status         string           `json:"status"`
	VendorID       string           `json:"vendor_id"`
	SentAt         *time.Time       `json:"sent_at"`
	Lines          []TrackingLine   `json:"lines"`
	MRCount        int              `json:"mr_count"`
	InspectedCount int              `json:"inspected_count"`
	LatestMRStatus string           `json:"latest_mr_status"`
	AcceptedTotal  decimal.Decimal  `json:"qc_accepted_total"`
	RejectedTotal  decimal.Decimal  `json:"qc_rejected_total"`
	GatePasses     map[string]int64 `json:"gate_passes"`
}

// PendingLine PO行待发料数量
type PendingLine struct {
	POLineID           string          `json:"po_line_id"`
	ItemID             string          `json:"item_id"`
	ItemCode           string          `json:"item_code"`
	ItemName           string          `json:"item_name"`
	OrderedQuantity    decimal.Decimal `json:"ordered_quantity"`
	DispatchedQuantity decimal.Decimal `json:"dispatched_quantity"`
	PendingQuantity    decimal.Decimal `json:"pending_quantity"`
}

// buildPOLines 校验并生成行项：至少一行、数量>0、单价>=0、物料不重复
func buildPOLines(poID string, reqs []POLineRequest) ([]entity.POLine, error) {
	if len(reqs) == 0 {
		return nil, ValidationError("lines", "采购订单至少需要一行")
	}
	seen := make(map[string]bool, len(reqs))
	lines := make([]entity.POLine, 0, len(reqs))
	now := time.Now()
	for i, r := range reqs {
		field := fmt.Sprintf("lines[%d]", i)
		itemID := strings.TrimSpace(r.ItemID)
		if itemID == "" {
			return nil, ValidationError(field+".item_id", "物料不能为空")
		}
		if seen[itemID] {
			return nil, ValidationError(field+".item_id", "物料重复: %s", itemID)
		}
		seen[itemID] = true
		if !r.OrderedQuantity.IsPositive() {
			return nil, ValidationError(field+".ordered_quantity", "订购数量必须大于0")
		}
		if r.Rate.IsNegative() {
			return nil, ValidationError(field+".rate", "单价不能为负")
		}
		if err := checkQuantity(field+".ordered_quantity", r.OrderedQuantity); err != nil {
			return nil, err
		}
		if err := checkQuantity(field+".rate", r.Rate); err != nil {
			return nil, err
		}
		err := checkLengths(
			fieldLimit{field + ".item_id", itemID, 32},
			fieldLimit{field + ".item_code", r.ItemCode, 50},
			fieldLimit{field + ".item_name", r.ItemName, 200},
			fieldLimit{field + ".uom", r.UOM, 20},
		)
		if err != nil {
			return nil, err
		}
		uom := r.UOM
		if uom == "" {
			uom = "NOS"
		}
		lines = append(lines, entity.POLine{
			ID:            uuid.New().String()[:32],
			POID:          poID,
			ItemID:        itemID,
			ItemCode:      r.ItemCode,
			ItemName:      r.ItemName,
			UOM:           uom,
			OrderedQty:    r.OrderedQuantity,
			Rate:          r.Rate,
			ReceivedQty:   decimal.Zero,
			DispatchedQty: decimal.Zero,
			SortOrder:     i + 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return lines, nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, ValidationError(field, "日期格式错误，应为 YYYY-MM-DD")
	}
	return &t, nil
}

// CreatePO 创建草稿PO
func (s *WorkflowService) CreatePO(ctx context.Context, userID string, req *CreatePORequest) (*entity.PurchaseOrder, error) {
	if strings.TrimSpace(req.VendorID) == "" {
		return nil, s.rejected("po.create", ValidationError("vendor_id", "供应商不能为空"))
	}
	if err := checkLengths(fieldLimit{"vendor_id", req.VendorID, 32}, fieldLimit{"vendor_name", req.VendorName, 200}); err != nil {
		return nil, s.rejected("po.create", err)
	}
	expected, err := parseDate("expected_date", req.ExpectedDate)
	if err != nil {
		return nil, s.rejected("po.create", err)
	}

	now := s.now()
	po := &entity.PurchaseOrder{
		ID:           uuid.New().String()[:32],
		VendorID:     req.VendorID,
		VendorName:   req.VendorName,
		Status:       entity.POStatusDraft,
		ExpectedDate: expected,
		Remarks:      req.Remarks,
		CreatedBy:    userID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	po.Lines, err = buildPOLines(po.ID, req.Lines)
	if err != nil {
		return nil, s.rejected("po.create", err)
	}

	err = s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		code, err := repos.PO.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		po.PONumber = code
		return repos.PO.Create(ctx, po)
	})
	if err != nil {
		return nil, s.rejected("po.create", fmt.Errorf("create po: %w", err))
	}

	s.transitioned(ctx, entity.EntityPO, po.ID, po.PONumber, "create", "", entity.POStatusDraft, userID, nil)
	return s.repos.PO.FindByID(ctx, po.ID)
}

// UpdatePO 修改草稿PO，非草稿返回 InvalidStateError
func (s *WorkflowService) UpdatePO(ctx context.Context, userID, id string, req *UpdatePORequest) (*entity.PurchaseOrder, error) {
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		po, err := repos.PO.FindByID(ctx, id)
		if err != nil {
			return mapNotFound(err, "id", "采购订单", id)
		}
		if !po.IsEditable() {
			return InvalidStateError("status", "采购订单状态为%s，仅草稿可修改", po.Status)
		}

		if req.VendorID != nil {
			if strings.TrimSpace(*req.VendorID) == "" {
				return ValidationError("vendor_id", "供应商不能为空")
			}
			if err := checkLengths(fieldLimit{"vendor_id", *req.VendorID, 32}); err != nil {
				return err
			}
			po.VendorID = *req.VendorID
		}
		if req.VendorName != nil {
			if err := checkLengths(fieldLimit{"vendor_name", *req.VendorName, 200}); err != nil {
				return err
			}
			po.VendorName = *req.VendorName
		}
		if req.ExpectedDate != nil {
			expected, err := parseDate("expected_date", *req.ExpectedDate)
			if err != nil {
				return err
			}
			po.ExpectedDate = expected
		}
		if req.Remarks != nil {
			po.Remarks = *req.Remarks
		}
		po.UpdatedAt = s.now()

		ok, err := repos.PO.UpdateHeader(ctx, po)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("status", "采购订单已被并发修改")
		}

		if req.Lines != nil {
			lines, err := buildPOLines(po.ID, req.Lines)
			if err != nil {
				return err
			}
			received, err := repos.MR.HasReceipts(ctx, po.ID)
			if err != nil {
				return err
			}
			if received {
				return ConflictError("lines", "采购订单已有收货记录，不能修改行项")
			}
			if err := repos.PO.ReplaceLines(ctx, po.ID, lines); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("po.update", err)
	}

	po, err := s.repos.PO.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.repos.ActivityLog.LogActivity(ctx, entity.EntityPO, po.ID, po.PONumber, "update", po.Status, po.Status, "", userID, nil)
	return po, nil
}

// SendPO 草稿 -> 已发送，记录 sent_at，不可撤回
func (s *WorkflowService) SendPO(ctx context.Context, userID, id string) (*entity.PurchaseOrder, error) {
	po, err := s.repos.PO.FindByID(ctx, id)
	if err != nil {
		return nil, s.rejected("po.send", mapNotFound(err, "id", "采购订单", id))
	}
	if !po.CanTransitionTo(entity.POStatusSent) {
		return nil, s.rejected("po.send", InvalidStateError("status", "采购订单状态为%s，不能发送", po.Status))
	}

	now := s.now()
	ok, err := s.repos.PO.TransitionStatus(ctx, id, []string{entity.POStatusDraft}, entity.POStatusSent, map[string]interface{}{
		"sent_at": now,
		"sent_by": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("send po: %w", err)
	}
	if !ok {
		return nil, s.rejected("po.send", ConflictError("status", "采购订单状态已变更"))
	}

	s.transitioned(ctx, entity.EntityPO, po.ID, po.PONumber, "send", po.Status, entity.POStatusSent, userID, nil)
	return s.repos.PO.FindByID(ctx, id)
}

// CancelPO 取消PO；已有收货数量时拒绝（ConflictError），不级联取消收货单
func (s *WorkflowService) CancelPO(ctx context.Context, userID, id string, req *CancelPORequest) (*entity.PurchaseOrder, error) {
	var from, code string
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		po, err := repos.PO.FindByID(ctx, id)
		if err != nil {
			return mapNotFound(err, "id", "采购订单", id)
		}
		if !po.CanTransitionTo(entity.POStatusCancelled) {
			return InvalidStateError("status", "采购订单状态为%s，不能取消", po.Status)
		}
		from, code = po.Status, po.PONumber

		// 先翻转状态占住PO行，再检查收货，避免与并发收货交错
		ok, err := repos.PO.TransitionStatus(ctx, id, []string{entity.POStatusDraft, entity.POStatusSent}, entity.POStatusCancelled, map[string]interface{}{
			"cancelled_at":  s.now(),
			"cancelled_by":  userID,
			"cancel_reason": strings.TrimSpace(req.Reason),
		})
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("status", "采购订单状态已变更")
		}

		received, err := repos.MR.HasReceipts(ctx, id)
		if err != nil {
			return err
		}
		if received {
			return ConflictError("id", "采购订单已有收货记录，不能取消")
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("po.cancel", err)
	}

	s.transitioned(ctx, entity.EntityPO, id, code, "cancel", from, entity.POStatusCancelled, userID, nil)
	return s.repos.PO.FindByID(ctx, id)
}

// GetPO 获取PO详情
func (s *WorkflowService) GetPO(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	po, err := s.repos.PO.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "采购订单", id)
	}
	return po, nil
}

// ListPOs PO列表
func (s *WorkflowService) ListPOs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.repos.PO.FindAll(ctx, page, pageSize, filters)
}

// RemainingQuantity 按收货行实时汇总剩余可收数量
func (s *WorkflowService) RemainingQuantity(ctx context.Context, poID, lineID string) (*RemainingQuantity, error) {
	line, err := s.repos.PO.FindLineByID(ctx, lineID)
	if err != nil {
		return nil, mapNotFound(err, "line_id", "PO行", lineID)
	}
	if poID != "" && line.POID != poID {
		return nil, NotFoundError("line_id", "PO行不属于该采购订单: %s", lineID)
	}

	q, err := s.reports.LineQuantity(ctx, lineID)
	if err != nil {
		return nil, mapNotFound(err, "line_id", "PO行", lineID)
	}
	return &RemainingQuantity{
		POLineID:          q.POLineID,
		ItemID:            q.ItemID,
		OrderedQuantity:   q.OrderedQty,
		ReceivedQuantity:  q.ReceivedQty,
		RemainingQuantity: q.OrderedQty.Sub(q.ReceivedQty),
	}, nil
}

// TrackPO PO全链路跟踪
func (s *WorkflowService) TrackPO(ctx context.Context, id string) (*POTracking, error) {
	po, err := s.repos.PO.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "采购订单", id)
	}

	lines, err := s.reports.LineQuantities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("line quantities: %w", err)
	}
	summary, err := s.reports.ReceiptSummary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("receipt summary: %w", err)
	}
	gatePasses, err := s.repos.GatePass.CountByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("gate pass summary: %w", err)
	}

	tracking := &POTracking{
		POID:           po.ID,
		PONumber:       po.PONumber,
		Status:         po.Status,
		VendorID:       po.VendorID,
		SentAt:         po.SentAt,
		Lines:          make([]TrackingLine, 0, len(lines)),
		MRCount:        summary.MRCount,
		InspectedCount: summary.InspectedCount,
		LatestMRStatus: summary.LatestMRStatus,
		AcceptedTotal:  decimal.Zero,
		RejectedTotal:  decimal.Zero,
		GatePasses:     gatePasses,
	}
	for _, l := range lines {
		tracking.Lines = append(tracking.Lines, TrackingLine{
			LineQuantities: l,
			RemainingQty:   l.OrderedQty.Sub(l.ReceivedQty),
			PendingQty:     l.OrderedQty.Sub(l.DispatchedQty),
		})
		tracking.AcceptedTotal = tracking.AcceptedTotal.Add(l.AcceptedQty)
		tracking.RejectedTotal = tracking.RejectedTotal.Add(l.RejectedQty)
	}
	return tracking, nil
}

// PendingDispatch PO待发料数量 = 订购 - 已发料（不含作废发料单）
func (s *WorkflowService) PendingDispatch(ctx context.Context, id string) ([]PendingLine, error) {
	if _, err := s.repos.PO.FindByID(ctx, id); err != nil {
		return nil, mapNotFound(err, "id", "采购订单", id)
	}
	lines, err := s.reports.LineQuantities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("line quantities: %w", err)
	}
	result := make([]PendingLine, 0, len(lines))
	for _, l := range lines {
		result = append(result, PendingLine{
			POLineID:           l.POLineID,
			ItemID:             l.ItemID,
			ItemCode:           l.ItemCode,
			ItemName:           l.ItemName,
			OrderedQuantity:    l.OrderedQty,
			DispatchedQuantity: l.DispatchedQty,
			PendingQuantity:    l.OrderedQty.Sub(l.DispatchedQty),
		})
	}
	return result, nil
}

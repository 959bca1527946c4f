package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/google/uuid"
)

// DispatchToStoreRequest 放行单移交仓库请求，StoreID 为空时沿用收货仓库
type DispatchToStoreRequest struct {
	StoreID string `json:"store_id"`
}

// issueGatePass 由检验合格行生成放行单；无合格行时返回 nil（全部拒收是合法终态）
func (s *WorkflowService) issueGatePass(ctx context.Context, repos *repository.Repositories, inspection *entity.Inspection, mr *entity.MaterialReceipt, userID string) (*entity.GatePass, error) {
	gp := &entity.GatePass{
		ID:           uuid.New().String()[:32],
		InspectionID: inspection.ID,
		MRID:         mr.ID,
		POID:         mr.POID,
		StoreID:      mr.StoreID,
		StoreStatus:  entity.GatePassPending,
		IssuedBy:     inspection.InspectedBy,
	}
	for _, l := range inspection.Lines {
		if !l.AcceptedQty.IsPositive() {
			continue
		}
		gp.Items = append(gp.Items, entity.GatePassItem{
			ID:               uuid.New().String()[:32],
			GatePassID:       gp.ID,
			InspectionLineID: l.ID,
			ItemID:           l.ItemID,
			ItemCode:         l.ItemCode,
			ItemName:         l.ItemName,
			UOM:              l.UOM,
			AcceptedQty:      l.AcceptedQty,
		})
	}
	if len(gp.Items) == 0 {
		return nil, nil
	}

	code, err := repos.GatePass.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	gp.GatePassNumber = code
	if err := repos.GatePass.Create(ctx, gp); err != nil {
		return nil, err
	}
	return gp, nil
}

// IssueFromInspection 按检验单生成放行单；已生成返回 ConflictError，全部拒收返回 nil
func (s *WorkflowService) IssueFromInspection(ctx context.Context, userID, inspectionID string) (*entity.GatePass, error) {
	var gp *entity.GatePass
	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		inspection, err := repos.Inspection.FindByID(ctx, inspectionID)
		if err != nil {
			return mapNotFound(err, "inspection_id", "检验单", inspectionID)
		}
		existing, err := repos.GatePass.FindByInspectionID(ctx, inspectionID)
		if err == nil {
			return ConflictError("inspection_id", "检验单已生成放行单: %s", existing.GatePassNumber)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		mr, err := repos.MR.FindByID(ctx, inspection.MRID)
		if err != nil {
			return mapNotFound(err, "mr_id", "收货单", inspection.MRID)
		}
		gp, err = s.issueGatePass(ctx, repos, inspection, mr, userID)
		return err
	})
	if err != nil {
		return nil, s.rejected("gate_pass.issue", err)
	}
	if gp == nil {
		return nil, nil
	}

	s.transitioned(ctx, entity.EntityGatePass, gp.ID, gp.GatePassNumber, "issue", "", entity.GatePassPending, userID, map[string]interface{}{
		"inspection_id": inspectionID,
	})
	return s.repos.GatePass.FindByID(ctx, gp.ID)
}

// DispatchToStore PENDING -> SENT_TO_STORE
func (s *WorkflowService) DispatchToStore(ctx context.Context, userID, gatePassID string, req *DispatchToStoreRequest) (*entity.GatePass, error) {
	gp, err := s.repos.GatePass.FindByID(ctx, gatePassID)
	if err != nil {
		return nil, s.rejected("gate_pass.dispatch", mapNotFound(err, "id", "放行单", gatePassID))
	}
	return s.dispatchToStore(ctx, userID, gp, req)
}

// DispatchToStoreByInspection 按检验单定位放行单并移交仓库
func (s *WorkflowService) DispatchToStoreByInspection(ctx context.Context, userID, inspectionID string, req *DispatchToStoreRequest) (*entity.GatePass, error) {
	gp, err := s.repos.GatePass.FindByInspectionID(ctx, inspectionID)
	if err != nil {
		return nil, s.rejected("gate_pass.dispatch", mapNotFound(err, "inspection_id", "检验单对应的放行单", inspectionID))
	}
	return s.dispatchToStore(ctx, userID, gp, req)
}

func (s *WorkflowService) dispatchToStore(ctx context.Context, userID string, gp *entity.GatePass, req *DispatchToStoreRequest) (*entity.GatePass, error) {
	if gp.StoreStatus != entity.GatePassPending {
		return nil, s.rejected("gate_pass.dispatch", InvalidStateError("store_status", "放行单状态为%s，仅待移交可发往仓库", gp.StoreStatus))
	}
	storeID := gp.StoreID
	if req != nil && strings.TrimSpace(req.StoreID) != "" {
		storeID = strings.TrimSpace(req.StoreID)
	}
	if storeID == "" {
		return nil, s.rejected("gate_pass.dispatch", ValidationError("store_id", "未指定接收仓库"))
	}
	if err := checkLengths(fieldLimit{"store_id", storeID, 32}); err != nil {
		return nil, s.rejected("gate_pass.dispatch", err)
	}

	ok, err := s.repos.GatePass.TransitionStatus(ctx, gp.ID, entity.GatePassPending, entity.GatePassSentToStore, map[string]interface{}{
		"store_id": storeID,
		"sent_at":  s.now(),
		"sent_by":  userID,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch gate pass: %w", err)
	}
	if !ok {
		return nil, s.rejected("gate_pass.dispatch", ConflictError("store_status", "放行单状态已变更"))
	}

	s.transitioned(ctx, entity.EntityGatePass, gp.ID, gp.GatePassNumber, "dispatch_to_store", entity.GatePassPending, entity.GatePassSentToStore, userID, map[string]interface{}{
		"store_id": storeID,
	})
	return s.repos.GatePass.FindByID(ctx, gp.ID)
}

// GetGatePass 获取放行单
func (s *WorkflowService) GetGatePass(ctx context.Context, id string) (*entity.GatePass, error) {
	gp, err := s.repos.GatePass.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "放行单", id)
	}
	return gp, nil
}

// GetGatePassByInspection 根据检验单获取放行单
func (s *WorkflowService) GetGatePassByInspection(ctx context.Context, inspectionID string) (*entity.GatePass, error) {
	gp, err := s.repos.GatePass.FindByInspectionID(ctx, inspectionID)
	if err != nil {
		return nil, mapNotFound(err, "inspection_id", "检验单对应的放行单", inspectionID)
	}
	return gp, nil
}

// ListGatePasses 放行单列表
func (s *WorkflowService) ListGatePasses(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.GatePass, int64, error) {
	return s.repos.GatePass.FindAll(ctx, page, pageSize, filters)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InspectionLineRequest 检验行请求
type InspectionLineRequest struct {
	MRLineID         string          `json:"mr_line_id" binding:"required"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	Remarks          string          `json:"remarks"`
}

// SubmitInspectionRequest 提交检验请求
type SubmitInspectionRequest struct {
	MRID        string                  `json:"mr_id" binding:"required"`
	InspectedBy string                  `json:"inspected_by" binding:"required"`
	Remarks     string                  `json:"remarks"`
	Lines       []InspectionLineRequest `json:"lines" binding:"required,dive"`
}

// InspectionOutcome 检验结果；全部拒收时 GatePass 为空
type InspectionOutcome struct {
	Inspection *entity.Inspection `json:"inspection"`
	GatePass   *entity.GatePass   `json:"gate_pass"`
}

// SubmitInspection 提交检验：每个收货行必须恰好判定一次，合格+不合格=收货
// 同一事务内将收货单置为 INSPECTED 并按合格数量生成放行单
func (s *WorkflowService) SubmitInspection(ctx context.Context, userID string, req *SubmitInspectionRequest) (*InspectionOutcome, error) {
	if strings.TrimSpace(req.InspectedBy) == "" {
		return nil, s.rejected("inspection.submit", ValidationError("inspected_by", "检验人不能为空"))
	}
	if err := checkLengths(fieldLimit{"inspected_by", req.InspectedBy, 100}); err != nil {
		return nil, s.rejected("inspection.submit", err)
	}

	now := s.now()
	inspection := &entity.Inspection{
		ID:          uuid.New().String()[:32],
		MRID:        req.MRID,
		InspectedBy: req.InspectedBy,
		Remarks:     req.Remarks,
		InspectedAt: now,
		CreatedBy:   userID,
		CreatedAt:   now,
	}
	var mr *entity.MaterialReceipt
	var gatePass *entity.GatePass

	err := s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		mr, err = repos.MR.FindByID(ctx, req.MRID)
		if err != nil {
			return mapNotFound(err, "mr_id", "收货单", req.MRID)
		}
		if mr.Status != entity.MRStatusCreated {
			return ConflictError("mr_id", "收货单%s已检验，不能重复提交", mr.MRNumber)
		}

		lines, err := buildInspectionLines(inspection.ID, mr, req.Lines)
		if err != nil {
			return err
		}
		inspection.POID = mr.POID
		inspection.Lines = lines
		inspection.Result = entity.ResultOf(lines)

		ok, err := repos.MR.MarkInspected(ctx, mr.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("mr_id", "收货单%s已检验，不能重复提交", mr.MRNumber)
		}

		code, err := repos.Inspection.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		inspection.InspectionNumber = code
		if err := repos.Inspection.Create(ctx, inspection); err != nil {
			return err
		}

		gatePass, err = s.issueGatePass(ctx, repos, inspection, mr, userID)
		return err
	})
	if err != nil {
		return nil, s.rejected("inspection.submit", err)
	}

	for _, l := range inspection.Lines {
		s.quantity("accepted", l.AcceptedQty)
		s.quantity("rejected", l.RejectedQty)
	}
	s.transitioned(ctx, entity.EntityMR, mr.ID, mr.MRNumber, "inspect", entity.MRStatusCreated, entity.MRStatusInspected, userID, map[string]interface{}{
		"inspection_id": inspection.ID,
		"result":        inspection.Result,
	})
	if gatePass != nil {
		s.transitioned(ctx, entity.EntityGatePass, gatePass.ID, gatePass.GatePassNumber, "issue", "", entity.GatePassPending, userID, map[string]interface{}{
			"inspection_id": inspection.ID,
		})
	}

	outcome := &InspectionOutcome{}
	if outcome.Inspection, err = s.repos.Inspection.FindByID(ctx, inspection.ID); err != nil {
		return nil, err
	}
	if gatePass != nil {
		if outcome.GatePass, err = s.repos.GatePass.FindByID(ctx, gatePass.ID); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// buildInspectionLines 校验检验行覆盖全部收货行，且数量守恒
func buildInspectionLines(inspectionID string, mr *entity.MaterialReceipt, reqs []InspectionLineRequest) ([]entity.InspectionLine, error) {
	mrLines := make(map[string]*entity.MRLine, len(mr.Lines))
	for i := range mr.Lines {
		mrLines[mr.Lines[i].ID] = &mr.Lines[i]
	}

	seen := make(map[string]bool, len(reqs))
	lines := make([]entity.InspectionLine, 0, len(reqs))
	for i, r := range reqs {
		field := fmt.Sprintf("lines[%d]", i)
		mrLine, ok := mrLines[r.MRLineID]
		if !ok {
			return nil, NotFoundError(field+".mr_line_id", "收货行不属于该收货单: %s", r.MRLineID)
		}
		if seen[r.MRLineID] {
			return nil, ValidationError(field+".mr_line_id", "收货行重复检验: %s", r.MRLineID)
		}
		seen[r.MRLineID] = true

		if r.AcceptedQuantity.IsNegative() || r.RejectedQuantity.IsNegative() {
			return nil, ValidationError(field, "合格/不合格数量不能为负")
		}
		if r.AcceptedQuantity.IsZero() && r.RejectedQuantity.IsZero() {
			return nil, ValidationError(field, "合格与不合格数量不能同时为0")
		}
		if err := checkQuantity(field+".accepted_quantity", r.AcceptedQuantity); err != nil {
			return nil, err
		}
		if err := checkQuantity(field+".rejected_quantity", r.RejectedQuantity); err != nil {
			return nil, err
		}
		total := r.AcceptedQuantity.Add(r.RejectedQuantity)
		if !total.Equal(mrLine.ReceivedQty) {
			return nil, ValidationError(field, "合格+不合格(%s)必须等于收货数量(%s)", total.String(), mrLine.ReceivedQty.String())
		}

		lines = append(lines, entity.InspectionLine{
			ID:           uuid.New().String()[:32],
			InspectionID: inspectionID,
			MRLineID:     mrLine.ID,
			POLineID:     mrLine.POLineID,
			ItemID:       mrLine.ItemID,
			ItemCode:     mrLine.ItemCode,
			ItemName:     mrLine.ItemName,
			UOM:          mrLine.UOM,
			ReceivedQty:  mrLine.ReceivedQty,
			AcceptedQty:  r.AcceptedQuantity,
			RejectedQty:  r.RejectedQuantity,
			Remarks:      r.Remarks,
		})
	}

	for _, l := range mr.Lines {
		if !seen[l.ID] {
			return nil, ValidationError("lines", "收货行未检验: %s", l.ID)
		}
	}
	return lines, nil
}

// GetInspection 获取检验单
func (s *WorkflowService) GetInspection(ctx context.Context, id string) (*entity.Inspection, error) {
	inspection, err := s.repos.Inspection.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "检验单", id)
	}
	return inspection, nil
}

// GetInspectionByMR 根据收货单获取检验单
func (s *WorkflowService) GetInspectionByMR(ctx context.Context, mrID string) (*entity.Inspection, error) {
	inspection, err := s.repos.Inspection.FindByMRID(ctx, mrID)
	if err != nil {
		return nil, mapNotFound(err, "mr_id", "检验单", mrID)
	}
	return inspection, nil
}

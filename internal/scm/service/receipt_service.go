package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/shopspring/decimal"
)

// ReceiptLineRequest 收货行请求
type ReceiptLineRequest struct {
	POLineID         string          `json:"po_line_id" binding:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// CreateReceiptRequest 创建收货单请求
type CreateReceiptRequest struct {
	POID      string               `json:"po_id" binding:"required"`
	StoreID   string               `json:"store_id"`
	BinID     string               `json:"bin_id"`
	VehicleNo string               `json:"vehicle_no"`
	ChallanNo string               `json:"challan_no"`
	BillNo    string               `json:"bill_no"`
	Remarks   string               `json:"remarks"`
	Lines     []ReceiptLineRequest `json:"lines" binding:"required,dive"`
}

// CreateReceipt 登记收货：逐行校验剩余可收数量，校验与累加在同一事务内完成
func (s *WorkflowService) CreateReceipt(ctx context.Context, userID string, req *CreateReceiptRequest) (*entity.MaterialReceipt, error) {
	err := checkLengths(
		fieldLimit{"store_id", req.StoreID, 32},
		fieldLimit{"bin_id", req.BinID, 32},
		fieldLimit{"vehicle_no", req.VehicleNo, 20},
		fieldLimit{"challan_no", req.ChallanNo, 50},
		fieldLimit{"bill_no", req.BillNo, 50},
	)
	if err != nil {
		return nil, s.rejected("mr.create", err)
	}
	lines, err := normalizeReceiptLines(req.Lines)
	if err != nil {
		return nil, s.rejected("mr.create", err)
	}

	now := s.now()
	mr := &entity.MaterialReceipt{
		ID:         uuid.New().String()[:32],
		POID:       req.POID,
		StoreID:    req.StoreID,
		BinID:      req.BinID,
		Status:     entity.MRStatusCreated,
		VehicleNo:  req.VehicleNo,
		ChallanNo:  req.ChallanNo,
		BillNo:     req.BillNo,
		ReceivedBy: userID,
		Remarks:    req.Remarks,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repos.Transaction(ctx, func(repos *repository.Repositories) error {
		po, err := repos.PO.FindByID(ctx, req.POID)
		if err != nil {
			return mapNotFound(err, "po_id", "采购订单", req.POID)
		}
		if po.Status == entity.POStatusCancelled {
			return InvalidStateError("po_id", "采购订单已取消，不能收货")
		}
		// 占住PO，与取消/改单串行
		ok, err := repos.PO.TransitionStatus(ctx, po.ID, []string{po.Status}, po.Status, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError("po_id", "采购订单状态已变更")
		}

		for i, l := range lines {
			field := fmt.Sprintf("lines[%d]", i)
			poLine, err := repos.PO.FindLineByID(ctx, l.POLineID)
			if err != nil {
				return mapNotFound(err, field+".po_line_id", "PO行", l.POLineID)
			}
			if poLine.POID != po.ID {
				return NotFoundError(field+".po_line_id", "PO行不属于该采购订单: %s", l.POLineID)
			}

			current, ok, err := repos.PO.AddReceived(ctx, poLine.ID, l.ReceivedQuantity)
			if err != nil {
				return err
			}
			if !ok {
				return ValidationError(field+".received_quantity", "quantity exceeds remaining: %s > %s",
					l.ReceivedQuantity.String(), current.RemainingQty().String())
			}

			mr.Lines = append(mr.Lines, entity.MRLine{
				ID:          uuid.New().String()[:32],
				MRID:        mr.ID,
				POLineID:    poLine.ID,
				ItemID:      poLine.ItemID,
				ItemCode:    poLine.ItemCode,
				ItemName:    poLine.ItemName,
				UOM:         poLine.UOM,
				ReceivedQty: l.ReceivedQuantity,
				CreatedAt:   now,
			})
		}

		code, err := repos.MR.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		mr.MRNumber = code
		return repos.MR.Create(ctx, mr)
	})
	if err != nil {
		return nil, s.rejected("mr.create", err)
	}

	for _, l := range mr.Lines {
		s.quantity("received", l.ReceivedQty)
	}
	s.transitioned(ctx, entity.EntityMR, mr.ID, mr.MRNumber, "create", "", entity.MRStatusCreated, userID, map[string]interface{}{
		"po_id": mr.POID,
	})
	return s.repos.MR.FindByID(ctx, mr.ID)
}

// normalizeReceiptLines 丢弃数量为0的行，负数或重复行报错，至少保留一行
func normalizeReceiptLines(reqs []ReceiptLineRequest) ([]ReceiptLineRequest, error) {
	seen := make(map[string]bool, len(reqs))
	lines := make([]ReceiptLineRequest, 0, len(reqs))
	for i, l := range reqs {
		field := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(l.POLineID) == "" {
			return nil, ValidationError(field+".po_line_id", "PO行不能为空")
		}
		if l.ReceivedQuantity.IsNegative() {
			return nil, ValidationError(field+".received_quantity", "收货数量不能为负")
		}
		if l.ReceivedQuantity.IsZero() {
			continue
		}
		if err := checkQuantity(field+".received_quantity", l.ReceivedQuantity); err != nil {
			return nil, err
		}
		if seen[l.POLineID] {
			return nil, ValidationError(field+".po_line_id", "同一PO行在收货单中重复: %s", l.POLineID)
		}
		seen[l.POLineID] = true
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return nil, ValidationError("lines", "至少一行收货数量大于0")
	}
	return lines, nil
}

// GetReceipt 获取收货单
func (s *WorkflowService) GetReceipt(ctx context.Context, id string) (*entity.MaterialReceipt, error) {
	mr, err := s.repos.MR.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "id", "收货单", id)
	}
	return mr, nil
}

// ListReceipts 收货单列表
func (s *WorkflowService) ListReceipts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialReceipt, int64, error) {
	return s.repos.MR.FindAll(ctx, page, pageSize, filters)
}

// UploadAttachment 上传收货单附件（送货单/发票）
func (s *WorkflowService) UploadAttachment(ctx context.Context, userID, mrID string, reader io.Reader, fileName string, fileSize int64, contentType string) (*entity.Attachment, error) {
	if _, err := s.repos.MR.FindByID(ctx, mrID); err != nil {
		return nil, mapNotFound(err, "id", "收货单", mrID)
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ValidationError("file", "文件名不能为空")
	}

	objectName := fmt.Sprintf("receipts/%s/%s/%s%s", time.Now().Format("2006/01"), mrID, uuid.New().String()[:8], filepath.Ext(fileName))

	if s.minioClient != nil {
		_, err := s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload file: %w", err)
		}
	}

	attachment := &entity.Attachment{
		ID:          uuid.New().String()[:32],
		EntityType:  entity.EntityMR,
		EntityID:    mrID,
		FileName:    fileName,
		ObjectName:  objectName,
		FileSize:    fileSize,
		ContentType: contentType,
		UploadedBy:  userID,
		CreatedAt:   s.now(),
	}
	if err := s.repos.Attachment.Create(ctx, attachment); err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return attachment, nil
}

// ListAttachments 收货单附件列表
func (s *WorkflowService) ListAttachments(ctx context.Context, mrID string) ([]entity.Attachment, error) {
	if _, err := s.repos.MR.FindByID(ctx, mrID); err != nil {
		return nil, mapNotFound(err, "id", "收货单", mrID)
	}
	return s.repos.Attachment.FindByEntity(ctx, entity.EntityMR, mrID)
}

package service

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/minio/minio-go/v7"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// POLedger 采购订单
type POLedger interface {
	CreatePO(ctx context.Context, userID string, req *CreatePORequest) (*entity.PurchaseOrder, error)
	UpdatePO(ctx context.Context, userID, id string, req *UpdatePORequest) (*entity.PurchaseOrder, error)
	SendPO(ctx context.Context, userID, id string) (*entity.PurchaseOrder, error)
	CancelPO(ctx context.Context, userID, id string, req *CancelPORequest) (*entity.PurchaseOrder, error)
	GetPO(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	ListPOs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error)
	RemainingQuantity(ctx context.Context, poID, lineID string) (*RemainingQuantity, error)
	TrackPO(ctx context.Context, id string) (*POTracking, error)
	PendingDispatch(ctx context.Context, id string) ([]PendingLine, error)
}

// ReceiptRecorder 来料收货
type ReceiptRecorder interface {
	CreateReceipt(ctx context.Context, userID string, req *CreateReceiptRequest) (*entity.MaterialReceipt, error)
	GetReceipt(ctx context.Context, id string) (*entity.MaterialReceipt, error)
	ListReceipts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialReceipt, int64, error)
	UploadAttachment(ctx context.Context, userID, mrID string, reader io.Reader, fileName string, fileSize int64, contentType string) (*entity.Attachment, error)
	ListAttachments(ctx context.Context, mrID string) ([]entity.Attachment, error)
}

// InspectionProcessor 来料检验
type InspectionProcessor interface {
	SubmitInspection(ctx context.Context, userID string, req *SubmitInspectionRequest) (*InspectionOutcome, error)
	GetInspection(ctx context.Context, id string) (*entity.Inspection, error)
	GetInspectionByMR(ctx context.Context, mrID string) (*entity.Inspection, error)
}

// GatePassIssuer 放行单
type GatePassIssuer interface {
	IssueFromInspection(ctx context.Context, userID, inspectionID string) (*entity.GatePass, error)
	DispatchToStore(ctx context.Context, userID, gatePassID string, req *DispatchToStoreRequest) (*entity.GatePass, error)
	DispatchToStoreByInspection(ctx context.Context, userID, inspectionID string, req *DispatchToStoreRequest) (*entity.GatePass, error)
	GetGatePass(ctx context.Context, id string) (*entity.GatePass, error)
	GetGatePassByInspection(ctx context.Context, inspectionID string) (*entity.GatePass, error)
	ListGatePasses(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.GatePass, int64, error)
}

// InventoryLedger 仓库库存
type InventoryLedger interface {
	ReceiveGatePass(ctx context.Context, userID, gatePassID string, req *ReceiveGatePassRequest) (*ReceiveOutcome, error)
	GetInventoryItem(ctx context.Context, id string) (*entity.InventoryItem, error)
	ListInventory(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryItem, int64, error)
	ListInventoryTransactions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.InventoryTransaction, int64, error)
}

// DispatchIssuer 发料
type DispatchIssuer interface {
	CreateDispatch(ctx context.Context, userID string, req *DispatchRequest) (*entity.MaterialDispatch, error)
	UpdateDispatch(ctx context.Context, userID, id string, req *DispatchRequest) (*entity.MaterialDispatch, error)
	DeleteDispatch(ctx context.Context, userID, id string) error
	IssueDispatch(ctx context.Context, userID, id string) (*entity.MaterialDispatch, error)
	CancelDispatch(ctx context.Context, userID, id string, req *CancelDispatchRequest) (*entity.MaterialDispatch, error)
	GetDispatch(ctx context.Context, id string) (*entity.MaterialDispatch, error)
	ListDispatches(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.MaterialDispatch, int64, error)
}

// Exporter 台账导出
type Exporter interface {
	ExportInventory(ctx context.Context, filters map[string]string) (*excelize.File, string, error)
	ExportDispatches(ctx context.Context, filters map[string]string) (*excelize.File, string, error)
	ExportTransactions(ctx context.Context, w io.Writer, encoding string, filters map[string]string) error
}

// Workflow PO -> MR -> 检验 -> 放行 -> 库存 -> 发料 全链路状态与数量规则
type Workflow interface {
	POLedger
	ReceiptRecorder
	InspectionProcessor
	GatePassIssuer
	InventoryLedger
	DispatchIssuer
	Exporter
	ListActivity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error)
}

// MetricsRecorder 流程指标
type MetricsRecorder interface {
	Transition(entityType, from, to string)
	Quantity(stage string, qty decimal.Decimal)
	Rejected(operation string, kind string)
}

// EventPublisher 状态变更推送
type EventPublisher interface {
	Publish(eventType string, payload map[string]interface{})
}

// Publishers 依次推送给多个接收方
type Publishers []EventPublisher

func (ps Publishers) Publish(eventType string, payload map[string]interface{}) {
	for _, p := range ps {
		p.Publish(eventType, payload)
	}
}

// Options 流程参数
type Options struct {
	CancelReasonMinLength int
}

// DefaultOptions 默认流程参数
func DefaultOptions() Options {
	return Options{CancelReasonMinLength: 5}
}

// WorkflowService 物料流转服务，六类单据的状态转换都在这里完成
type WorkflowService struct {
	repos   *repository.Repositories
	reports *repository.ReportRepository
	opts    Options

	metrics   MetricsRecorder
	publisher EventPublisher

	minioClient *minio.Client
	bucketName  string

	now func() time.Time
}

var _ Workflow = (*WorkflowService)(nil)

// NewWorkflowService 创建物料流转服务
func NewWorkflowService(repos *repository.Repositories, reports *repository.ReportRepository, opts Options) *WorkflowService {
	if opts.CancelReasonMinLength <= 0 {
		opts.CancelReasonMinLength = DefaultOptions().CancelReasonMinLength
	}
	return &WorkflowService{
		repos:   repos,
		reports: reports,
		opts:    opts,
		now:     time.Now,
	}
}

// SetMetrics 注入指标采集
func (s *WorkflowService) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// SetPublisher 注入事件推送
func (s *WorkflowService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetStorage 注入对象存储（未配置时附件只记录元数据）
func (s *WorkflowService) SetStorage(client *minio.Client, bucket string) {
	s.minioClient = client
	s.bucketName = bucket
}

// ListActivity 查询单据操作日志
func (s *WorkflowService) ListActivity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	return s.repos.ActivityLog.FindByEntity(ctx, entityType, entityID, page, pageSize)
}

// transitioned 记录状态变更：日志、审计、指标、推送
func (s *WorkflowService) transitioned(ctx context.Context, entityType, entityID, entityCode, action, from, to, userID string, metadata map[string]interface{}) {
	log.Printf("[SCM] %s %s %s: %s -> %s (operator=%s)", entityType, entityCode, action, from, to, userID)
	s.repos.ActivityLog.LogActivity(ctx, entityType, entityID, entityCode, action, from, to, "", userID, metadata)
	if s.metrics != nil {
		s.metrics.Transition(entityType, from, to)
	}
	if s.publisher != nil {
		payload := map[string]interface{}{
			"entity_type": entityType,
			"entity_id":   entityID,
			"entity_code": entityCode,
			"action":      action,
			"from_status": from,
			"to_status":   to,
			"operator":    userID,
		}
		for k, v := range metadata {
			payload[k] = v
		}
		s.publisher.Publish(entityType+"_update", payload)
	}
}

// rejected 业务拒绝计数
func (s *WorkflowService) rejected(operation string, err error) error {
	err = translate(err)
	if s.metrics != nil {
		if kind := KindOf(err); kind != "" {
			s.metrics.Rejected(operation, string(kind))
		}
	}
	return err
}

func (s *WorkflowService) quantity(stage string, qty decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.Quantity(stage, qty)
	}
}

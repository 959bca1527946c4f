package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
)

// ReceiptHandler 来料收货处理器
type ReceiptHandler struct {
	svc service.ReceiptRecorder
}

func NewReceiptHandler(svc service.ReceiptRecorder) *ReceiptHandler {
	return &ReceiptHandler{svc: svc}
}

// ListReceipts 收货单列表
// GET /api/v1/quality/material-receipt?po_id=xxx&status=xxx&store_id=xxx
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "po_id", "status", "store_id")

	items, total, err := h.svc.ListReceipts(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取收货单列表失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// GetReceipt 收货单详情
// GET /api/v1/quality/material-receipt/:id
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	mr, err := h.svc.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取收货单失败")
		return
	}
	Success(c, mr)
}

// CreateReceipt 登记收货
// POST /api/v1/quality/material-receipt
func (h *ReceiptHandler) CreateReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	mr, err := h.svc.CreateReceipt(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "登记收货失败")
		return
	}
	Created(c, mr)
}

// UploadAttachment 上传送货单/发票扫描件
// POST /api/v1/quality/material-receipt/:id/attachments (multipart: file)
func (h *ReceiptHandler) UploadAttachment(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.svc.UploadAttachment(c.Request.Context(), GetUserID(c), c.Param("id"),
		file, header.Filename, header.Size, contentType)
	if err != nil {
		respondError(c, err, "上传附件失败")
		return
	}
	Created(c, attachment)
}

// ListAttachments 收货单附件
// GET /api/v1/quality/material-receipt/:id/attachments
func (h *ReceiptHandler) ListAttachments(c *gin.Context) {
	items, err := h.svc.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取附件失败")
		return
	}
	Success(c, items)
}

package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
)

type dispatchService interface {
	service.DispatchIssuer
	service.Exporter
}

// DispatchHandler 发料处理器
type DispatchHandler struct {
	svc dispatchService
}

func NewDispatchHandler(svc dispatchService) *DispatchHandler {
	return &DispatchHandler{svc: svc}
}

// ListDispatches 发料单列表
// GET /api/v1/store/material-dispatch?status=xxx&reference_type=xxx&reference_id=xxx&warehouse_id=xxx
func (h *DispatchHandler) ListDispatches(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "status", "reference_type", "reference_id", "warehouse_id")

	items, total, err := h.svc.ListDispatches(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取发料单列表失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// GetDispatch 发料单详情
// GET /api/v1/store/material-dispatch/:id
func (h *DispatchHandler) GetDispatch(c *gin.Context) {
	d, err := h.svc.GetDispatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取发料单失败")
		return
	}
	Success(c, d)
}

// CreateDispatch 创建发料单（issue_now=true 时直接发料）
// POST /api/v1/store/material-dispatch
func (h *DispatchHandler) CreateDispatch(c *gin.Context) {
	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	d, err := h.svc.CreateDispatch(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "创建发料单失败")
		return
	}
	Created(c, d)
}

// UpdateDispatch 修改草稿发料单
// PUT /api/v1/store/material-dispatch/:id
func (h *DispatchHandler) UpdateDispatch(c *gin.Context) {
	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	d, err := h.svc.UpdateDispatch(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "更新发料单失败")
		return
	}
	Success(c, d)
}

// DeleteDispatch 删除草稿发料单
// DELETE /api/v1/store/material-dispatch/:id
func (h *DispatchHandler) DeleteDispatch(c *gin.Context) {
	if err := h.svc.DeleteDispatch(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "删除发料单失败")
		return
	}
	Success(c, nil)
}

// IssueDispatch 发料
// POST /api/v1/store/material-dispatch/:id/issue
func (h *DispatchHandler) IssueDispatch(c *gin.Context) {
	d, err := h.svc.IssueDispatch(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "发料失败")
		return
	}
	Success(c, d)
}

// CancelDispatch 作废发料单
// POST /api/v1/store/material-dispatch/:id/cancel
func (h *DispatchHandler) CancelDispatch(c *gin.Context) {
	var req service.CancelDispatchRequest
	c.ShouldBindJSON(&req)

	d, err := h.svc.CancelDispatch(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "作废发料单失败")
		return
	}
	Success(c, d)
}

// ExportDispatches 导出发料登记簿
// GET /api/v1/store/material-dispatch/export?status=xxx&warehouse_id=xxx
func (h *DispatchHandler) ExportDispatches(c *gin.Context) {
	filters := queryFilters(c, "status", "reference_type", "reference_id", "warehouse_id")
	f, filename, err := h.svc.ExportDispatches(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "导出发料登记失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

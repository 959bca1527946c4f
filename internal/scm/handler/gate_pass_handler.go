package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
)

// GatePassHandler 放行单处理器
type GatePassHandler struct {
	svc service.GatePassIssuer
}

func NewGatePassHandler(svc service.GatePassIssuer) *GatePassHandler {
	return &GatePassHandler{svc: svc}
}

// ListGatePasses 放行单列表
// GET /api/v1/quality/gate-pass?store_status=xxx&store_id=xxx&po_id=xxx
func (h *GatePassHandler) ListGatePasses(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "store_status", "store_id", "po_id")

	items, total, err := h.svc.ListGatePasses(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取放行单列表失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// GetGatePass 放行单详情
// GET /api/v1/quality/gate-pass/:id
func (h *GatePassHandler) GetGatePass(c *gin.Context) {
	gp, err := h.svc.GetGatePass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取放行单失败")
		return
	}
	Success(c, gp)
}

// GetByInspection 根据检验单获取放行单
// GET /api/v1/quality/gate-pass/inspection/:inspection_id
func (h *GatePassHandler) GetByInspection(c *gin.Context) {
	gp, err := h.svc.GetGatePassByInspection(c.Request.Context(), c.Param("inspection_id"))
	if err != nil {
		respondError(c, err, "获取放行单失败")
		return
	}
	Success(c, gp)
}

// DispatchToStore 放行单移交仓库
// POST /api/v1/quality/gate-pass/:id/dispatch
func (h *GatePassHandler) DispatchToStore(c *gin.Context) {
	var req service.DispatchToStoreRequest
	c.ShouldBindJSON(&req)

	gp, err := h.svc.DispatchToStore(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "移交仓库失败")
		return
	}
	Success(c, gp)
}

// DispatchByInspection 按检验单移交仓库
// POST /api/v1/quality/gate-pass/inspection/:inspection_id/dispatch
func (h *GatePassHandler) DispatchByInspection(c *gin.Context) {
	var req service.DispatchToStoreRequest
	c.ShouldBindJSON(&req)

	gp, err := h.svc.DispatchToStoreByInspection(c.Request.Context(), GetUserID(c), c.Param("inspection_id"), &req)
	if err != nil {
		respondError(c, err, "移交仓库失败")
		return
	}
	Success(c, gp)
}

package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
)

// InspectionHandler 来料检验处理器
type InspectionHandler struct {
	svc service.InspectionProcessor
}

func NewInspectionHandler(svc service.InspectionProcessor) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// SubmitInspection 提交检验结果，同时生成放行单
// POST /api/v1/quality/inspection
func (h *InspectionHandler) SubmitInspection(c *gin.Context) {
	var req service.SubmitInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	outcome, err := h.svc.SubmitInspection(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "提交检验失败")
		return
	}
	Created(c, outcome)
}

// GetInspection 检验单详情
// GET /api/v1/quality/inspection/:id
func (h *InspectionHandler) GetInspection(c *gin.Context) {
	inspection, err := h.svc.GetInspection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取检验单失败")
		return
	}
	Success(c, inspection)
}

// GetByMR 根据收货单获取检验单
// GET /api/v1/quality/inspection/mr/:mr_id
func (h *InspectionHandler) GetByMR(c *gin.Context) {
	inspection, err := h.svc.GetInspectionByMR(c.Request.Context(), c.Param("mr_id"))
	if err != nil {
		respondError(c, err, "获取检验单失败")
		return
	}
	Success(c, inspection)
}

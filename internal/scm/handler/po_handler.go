package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// POHandler 采购订单处理器
type POHandler struct {
	svc service.POLedger
}

func NewPOHandler(svc service.POLedger) *POHandler {
	return &POHandler{svc: svc}
}

type poLineView struct {
	entity.POLine
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	Amount            decimal.Decimal `json:"amount"`
}

type poView struct {
	*entity.PurchaseOrder
	Lines []poLineView `json:"lines"`
}

func newPOView(po *entity.PurchaseOrder) poView {
	view := poView{PurchaseOrder: po, Lines: make([]poLineView, 0, len(po.Lines))}
	for _, l := range po.Lines {
		view.Lines = append(view.Lines, poLineView{
			POLine:            l,
			RemainingQuantity: l.RemainingQty(),
			Amount:            l.Amount(),
		})
	}
	return view
}

// ListPOs 采购订单列表
// GET /api/v1/procurement?vendor_id=xxx&status=xxx&search=xxx
func (h *POHandler) ListPOs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "vendor_id", "status", "search")

	items, total, err := h.svc.ListPOs(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// GetPO 采购订单详情（含行剩余可收数量）
// GET /api/v1/procurement/:id
func (h *POHandler) GetPO(c *gin.Context) {
	po, err := h.svc.GetPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取采购订单失败")
		return
	}
	Success(c, newPOView(po))
}

// CreatePO 创建草稿采购订单
// POST /api/v1/procurement
func (h *POHandler) CreatePO(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.CreatePO(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		respondError(c, err, "创建采购订单失败")
		return
	}
	Created(c, newPOView(po))
}

// UpdatePO 修改草稿采购订单
// PUT /api/v1/procurement/:id
func (h *POHandler) UpdatePO(c *gin.Context) {
	var req service.UpdatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.UpdatePO(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "更新采购订单失败")
		return
	}
	Success(c, newPOView(po))
}

// SendPO 发送采购订单
// POST /api/v1/procurement/:id/send
func (h *POHandler) SendPO(c *gin.Context) {
	po, err := h.svc.SendPO(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "发送采购订单失败")
		return
	}
	Success(c, newPOView(po))
}

// CancelPO 取消采购订单
// POST /api/v1/procurement/:id/cancel
func (h *POHandler) CancelPO(c *gin.Context) {
	var req service.CancelPORequest
	c.ShouldBindJSON(&req)

	po, err := h.svc.CancelPO(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "取消采购订单失败")
		return
	}
	Success(c, newPOView(po))
}

// Tracking 采购订单全链路跟踪
// GET /api/v1/procurement/:id/tracking
func (h *POHandler) Tracking(c *gin.Context) {
	tracking, err := h.svc.TrackPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取跟踪信息失败")
		return
	}
	Success(c, tracking)
}

// Pending 待发料数量
// GET /api/v1/procurement/:id/pending
func (h *POHandler) Pending(c *gin.Context) {
	lines, err := h.svc.PendingDispatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取待发料数量失败")
		return
	}
	Success(c, lines)
}

// Remaining PO行剩余可收数量
// GET /api/v1/procurement/:id/lines/:line_id/remaining
func (h *POHandler) Remaining(c *gin.Context) {
	remaining, err := h.svc.RemainingQuantity(c.Request.Context(), c.Param("id"), c.Param("line_id"))
	if err != nil {
		respondError(c, err, "获取剩余数量失败")
		return
	}
	Success(c, remaining)
}

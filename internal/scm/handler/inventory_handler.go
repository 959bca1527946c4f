package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/gin-gonic/gin"
)

type inventoryService interface {
	service.InventoryLedger
	service.Exporter
}

// InventoryHandler 仓库库存处理器
type InventoryHandler struct {
	svc inventoryService
}

func NewInventoryHandler(svc inventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// ReceiveGatePass 仓库接收放行单并入账
// POST /api/v1/store/gate-pass/:id/receive
func (h *InventoryHandler) ReceiveGatePass(c *gin.Context) {
	var req service.ReceiveGatePassRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}

	outcome, err := h.svc.ReceiveGatePass(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err, "入库失败")
		return
	}
	Success(c, outcome)
}

// ListInventory 库存列表
// GET /api/v1/store/inventory?store_id=xxx&bin_id=xxx&item_id=xxx&in_stock=true
func (h *InventoryHandler) ListInventory(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "store_id", "bin_id", "item_id", "in_stock")

	items, total, err := h.svc.ListInventory(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取库存列表失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// GetInventory 库存详情
// GET /api/v1/store/inventory/:id
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	item, err := h.svc.GetInventoryItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "获取库存失败")
		return
	}
	Success(c, item)
}

// ListTransactions 库存流水
// GET /api/v1/store/inventory/:id/transactions
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.GetInventoryItem(c.Request.Context(), id); err != nil {
		respondError(c, err, "获取库存失败")
		return
	}

	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "reference_type", "reference_id")
	filters["inventory_item_id"] = id

	items, total, err := h.svc.ListInventoryTransactions(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取库存流水失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

// ExportInventory 导出库存台账
// GET /api/v1/store/inventory/export?store_id=xxx
func (h *InventoryHandler) ExportInventory(c *gin.Context) {
	f, filename, err := h.svc.ExportInventory(c.Request.Context(), queryFilters(c, "store_id", "bin_id", "item_id", "in_stock"))
	if err != nil {
		InternalError(c, "导出库存失败: "+err.Error())
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

// ExportTransactions 导出库存流水CSV
// GET /api/v1/store/inventory/transactions/export?encoding=gbk&store_id=xxx
func (h *InventoryHandler) ExportTransactions(c *gin.Context) {
	encoding := c.DefaultQuery("encoding", "utf-8")
	charset := "utf-8"
	if encoding == "gbk" {
		charset = "gbk"
	}
	filename := fmt.Sprintf("Inventory_Transactions_%s.csv", time.Now().Format("20060102"))

	c.Header("Content-Type", "text/csv; charset="+charset)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")

	filters := queryFilters(c, "store_id", "inventory_item_id", "reference_type", "reference_id")
	if err := h.svc.ExportTransactions(c.Request.Context(), c.Writer, encoding, filters); err != nil {
		c.Error(err)
	}
}

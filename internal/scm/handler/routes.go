package handler

import (
	"github.com/bitfantasy/nimo-scm/internal/middleware"
	"github.com/gin-gonic/gin"
)

// 业务角色，定义见 middleware
const (
	RolePurchaser   = middleware.RolePurchaser
	RoleQCInspector = middleware.RoleQCInspector
	RoleStoreKeeper = middleware.RoleStoreKeeper

	PermExport = middleware.PermExport
)

// RegisterRoutes 注册SCM路由，api 需已挂载认证中间件
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	procurement := api.Group("/procurement", middleware.RequireRole(RolePurchaser))
	{
		procurement.GET("", h.PO.ListPOs)
		procurement.POST("", h.PO.CreatePO)
		procurement.GET("/:id", h.PO.GetPO)
		procurement.PUT("/:id", h.PO.UpdatePO)
		procurement.POST("/:id/send", h.PO.SendPO)
		procurement.POST("/:id/cancel", h.PO.CancelPO)
		procurement.GET("/:id/tracking", h.PO.Tracking)
		procurement.GET("/:id/pending", h.PO.Pending)
		procurement.GET("/:id/lines/:line_id/remaining", h.PO.Remaining)
	}

	quality := api.Group("/quality", middleware.RequireRole(RoleQCInspector, RoleStoreKeeper))
	{
		quality.GET("/material-receipt", h.Receipt.ListReceipts)
		quality.POST("/material-receipt", h.Receipt.CreateReceipt)
		quality.GET("/material-receipt/:id", h.Receipt.GetReceipt)
		quality.POST("/material-receipt/:id/attachments", h.Receipt.UploadAttachment)
		quality.GET("/material-receipt/:id/attachments", h.Receipt.ListAttachments)

		quality.POST("/inspection", middleware.RequireRole(RoleQCInspector), h.Inspection.SubmitInspection)
		quality.GET("/inspection/:id", h.Inspection.GetInspection)
		quality.GET("/inspection/mr/:mr_id", h.Inspection.GetByMR)

		quality.GET("/gate-pass", h.GatePass.ListGatePasses)
		quality.GET("/gate-pass/:id", h.GatePass.GetGatePass)
		quality.POST("/gate-pass/:id/dispatch", h.GatePass.DispatchToStore)
		quality.GET("/gate-pass/inspection/:inspection_id", h.GatePass.GetByInspection)
		quality.POST("/gate-pass/inspection/:inspection_id/dispatch", h.GatePass.DispatchByInspection)
	}

	store := api.Group("/store", middleware.RequireRole(RoleStoreKeeper))
	{
		store.POST("/gate-pass/:id/receive", h.Inventory.ReceiveGatePass)

		store.GET("/inventory", h.Inventory.ListInventory)
		store.GET("/inventory/export", middleware.RequirePermission(PermExport), h.Inventory.ExportInventory)
		store.GET("/inventory/transactions/export", middleware.RequirePermission(PermExport), h.Inventory.ExportTransactions)
		store.GET("/inventory/:id", h.Inventory.GetInventory)
		store.GET("/inventory/:id/transactions", h.Inventory.ListTransactions)

		store.GET("/material-dispatch", h.Dispatch.ListDispatches)
		store.POST("/material-dispatch", h.Dispatch.CreateDispatch)
		store.GET("/material-dispatch/export", middleware.RequirePermission(PermExport), h.Dispatch.ExportDispatches)
		store.GET("/material-dispatch/:id", h.Dispatch.GetDispatch)
		store.PUT("/material-dispatch/:id", h.Dispatch.UpdateDispatch)
		store.DELETE("/material-dispatch/:id", h.Dispatch.DeleteDispatch)
		store.POST("/material-dispatch/:id/issue", h.Dispatch.IssueDispatch)
		store.POST("/material-dispatch/:id/cancel", h.Dispatch.CancelDispatch)
	}

	api.GET("/activity/:entity_type/:entity_id", h.Activity.ListActivity)
	api.GET("/events", h.Events.Stream)
}

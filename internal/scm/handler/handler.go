package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-scm/internal/middleware"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/sse"
	"github.com/gin-gonic/gin"
)

// Handlers SCM处理器集合
type Handlers struct {
	PO         *POHandler
	Receipt    *ReceiptHandler
	Inspection *InspectionHandler
	GatePass   *GatePassHandler
	Inventory  *InventoryHandler
	Dispatch   *DispatchHandler
	Activity   *ActivityHandler
	Events     *EventHandler
}

// NewHandlers 创建SCM处理器集合
func NewHandlers(svc service.Workflow, hub *sse.Hub) *Handlers {
	return &Handlers{
		PO:         NewPOHandler(svc),
		Receipt:    NewReceiptHandler(svc),
		Inspection: NewInspectionHandler(svc),
		GatePass:   NewGatePassHandler(svc),
		Inventory:  NewInventoryHandler(svc),
		Dispatch:   NewDispatchHandler(svc),
		Activity:   NewActivityHandler(svc),
		Events:     NewEventHandler(hub),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 业务拒绝响应，带错误分类与字段
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 业务错误分类 -> 响应码
var errorCodes = map[service.ErrorKind]int{
	service.KindValidation:   40001,
	service.KindNotFound:     40401,
	service.KindInvalidState: 40901,
	service.KindConflict:     40902,
}

// respondError 业务错误按分类返回，其余按内部错误处理
func respondError(c *gin.Context, err error, action string) {
	var e *service.Error
	if errors.As(err, &e) {
		code, ok := errorCodes[e.Kind]
		if !ok {
			code = 40000
		}
		c.JSON(code/100, ErrorResponse{
			Code:    code,
			Message: e.Message,
			Kind:    string(e.Kind),
			Field:   e.Field,
		})
		return
	}
	c.Error(err)
	InternalError(c, action+": "+err.Error())
}

// respondList 分页列表
func respondList(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// GetUserID 当前操作人ID
func GetUserID(c *gin.Context) string {
	if op, ok := middleware.CurrentOperator(c); ok {
		return op.ID
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryFilters 按名称收集查询参数
func queryFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		filters[k] = c.Query(k)
	}
	return filters
}

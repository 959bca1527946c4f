package handler

import (
	"context"

	"github.com/bitfantasy/nimo-scm/internal/scm/entity"
	"github.com/gin-gonic/gin"
)

type activityLister interface {
	ListActivity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error)
}

// ActivityHandler 单据操作日志
type ActivityHandler struct {
	svc activityLister
}

func NewActivityHandler(svc activityLister) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

var activityEntities = map[string]bool{
	entity.EntityPO:         true,
	entity.EntityMR:         true,
	entity.EntityInspection: true,
	entity.EntityGatePass:   true,
	entity.EntityDispatch:   true,
}

// ListActivity 单据操作日志
// GET /api/v1/activity/:entity_type/:entity_id
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	entityType := c.Param("entity_type")
	if !activityEntities[entityType] {
		BadRequest(c, "不支持的单据类型: "+entityType)
		return
	}

	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListActivity(c.Request.Context(), entityType, c.Param("entity_id"), page, pageSize)
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	respondList(c, items, total, page, pageSize)
}

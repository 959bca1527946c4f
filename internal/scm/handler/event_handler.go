package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/scm/sse"
	"github.com/gin-gonic/gin"
)

// EventHandler 单据状态实时推送
type EventHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewEventHandler(hub *sse.Hub) *EventHandler {
	return &EventHandler{hub: hub, heartbeat: 30 * time.Second}
}

// Stream SSE 推送
// GET /api/v1/events?token=xxx&topics=gate_pass_update,dispatch_update
func (h *EventHandler) Stream(c *gin.Context) {
	userID := GetUserID(c)
	clientID := fmt.Sprintf("%s_%d", userID, time.Now().UnixNano())

	client := &sse.Client{
		ID:     clientID,
		UserID: userID,
		Events: make(chan sse.Event, 64),
	}
	if topics := c.Query("topics"); topics != "" {
		client.Topics = make(map[string]bool)
		for _, t := range strings.Split(topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.Topics[t] = true
			}
		}
	}

	h.hub.Register(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			h.hub.Unregister(clientID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}

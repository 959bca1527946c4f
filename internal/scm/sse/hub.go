package sse

import (
	"encoding/json"
	"log"
	"sync"
)

// Event 推送事件
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 已连接的订阅端；Topics 为空表示订阅全部单据类型
type Client struct {
	ID     string
	UserID string
	Topics map[string]bool
	Events chan Event
}

func (c *Client) wants(eventType string) bool {
	return len(c.Topics) == 0 || c.Topics[eventType]
}

// Hub 管理全部 SSE 连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register 注册连接
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister 注销连接并关闭其事件通道
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 推送给所有订阅了该事件的连接，缓冲满时丢弃
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(event.EventType) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// Publish 单据状态变更推送（po_update / mr_update / gate_pass_update ...）
func (h *Hub) Publish(eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[SSE] marshal %s payload: %v", eventType, err)
		return
	}
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}

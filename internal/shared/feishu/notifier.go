package feishu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StoreNotifier 把仓库相关的单据变更推送到仓库群
// 实现 Publish(eventType, payload)，可与 SSE 推送并列挂到流程服务上
type StoreNotifier struct {
	client  *Client
	chatID  string
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewStoreNotifier(client *Client, chatID string, timeout time.Duration) *StoreNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StoreNotifier{client: client, chatID: chatID, timeout: timeout}
}

// Publish 异步发送，失败只记日志，不影响单据流转
func (n *StoreNotifier) Publish(eventType string, payload map[string]interface{}) {
	card, ok := cardFor(eventType, payload)
	if !ok {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.client.SendCard(ctx, n.chatID, card); err != nil {
			zap.L().Warn("feishu notify failed",
				zap.String("event", eventType),
				zap.String("code", text(payload, "entity_code")),
				zap.Error(err))
		}
	}()
}

// Wait 等待已发出的通知完成（停机时调用）
func (n *StoreNotifier) Wait() {
	n.wg.Wait()
}

func cardFor(eventType string, payload map[string]interface{}) (InteractiveCard, bool) {
	code := text(payload, "entity_code")
	operator := text(payload, "operator")

	switch eventType + "/" + text(payload, "action") {
	case "gate_pass_update/dispatch_to_store":
		return NewGatePassCard(code, text(payload, "store_id"), operator), true
	case "dispatch_update/issue":
		return NewDispatchIssuedCard(code, text(payload, "warehouse_id"), operator), true
	case "dispatch_update/cancel":
		return NewDispatchCancelledCard(code, text(payload, "reason"), operator), true
	}
	return InteractiveCard{}, false
}

func text(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

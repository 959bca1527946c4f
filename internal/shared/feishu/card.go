package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendCard 向群聊发送消息卡片
func (c *Client) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := map[string]interface{}{
		"receive_id": chatID,
		"msg_type":   "interactive",
		"content":    string(cardBytes),
	}

	var resp SendMessageResponse
	if err := c.call(ctx, "/open-apis/im/v1/messages?receive_id_type=chat_id", reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}
	return nil
}

func field(label, value string) CardField {
	return CardField{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", label, value)}}
}

func newCard(title, template string, fields []CardField, note string) InteractiveCard {
	elements := []CardElement{{Tag: "div", Fields: fields}}
	if note != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{Tag: "note", Elements: []CardElement{{Tag: "plain_text", Content: note}}},
		)
	}
	return InteractiveCard{
		Config:   &CardConfig{WideScreenMode: true},
		Header:   &CardHeader{Title: CardText{Tag: "plain_text", Content: title}, Template: template},
		Elements: elements,
	}
}

// NewGatePassCard 放行单移交仓库通知
func NewGatePassCard(gatePassNumber, storeID, operator string) InteractiveCard {
	return newCard("📦 放行单待入库", "blue", []CardField{
		field("放行单号", gatePassNumber),
		field("仓库", storeID),
		field("移交人", operator),
	}, "请仓库核对实物后接收入库")
}

// NewDispatchIssuedCard 发料完成通知
func NewDispatchIssuedCard(dispatchNumber, warehouseID, operator string) InteractiveCard {
	return newCard("🚚 发料已出库", "green", []CardField{
		field("发料单号", dispatchNumber),
		field("仓库", warehouseID),
		field("操作人", operator),
	}, "")
}

// NewDispatchCancelledCard 发料单作废通知，库存不会自动回冲
func NewDispatchCancelledCard(dispatchNumber, reason, operator string) InteractiveCard {
	card := newCard("⚠️ 发料单已作废", "red", []CardField{
		field("发料单号", dispatchNumber),
		field("操作人", operator),
	}, "作废不回冲库存，如需退库请另行办理")
	card.Elements = append(card.Elements[:1], append([]CardElement{{
		Tag:  "div",
		Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**作废原因**\n%s", reason)},
	}}, card.Elements[1:]...)...)
	return card
}

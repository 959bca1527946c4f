package service

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// 数量列为 decimal(18,4)
const qtyScale = 4

var qtyLimit = decimal.New(1, 14)

// fieldLimit 字符串字段与其列宽
type fieldLimit struct {
	field string
	value string
	max   int
}

// checkLengths 超出列宽的输入在写库前拒绝
func checkLengths(limits ...fieldLimit) error {
	for _, l := range limits {
		if n := utf8.RuneCountInString(l.value); n > l.max {
			return ValidationError(l.field, "长度不能超过%d个字符（当前%d）", l.max, n)
		}
	}
	return nil
}

// checkQuantity 数量最多4位小数且不超出列范围
func checkQuantity(field string, q decimal.Decimal) error {
	if !q.Equal(q.Truncate(qtyScale)) {
		return ValidationError(field, "数量最多%d位小数: %s", qtyScale, q.String())
	}
	if q.Abs().GreaterThanOrEqual(qtyLimit) {
		return ValidationError(field, "数量超出范围: %s", q.String())
	}
	return nil
}

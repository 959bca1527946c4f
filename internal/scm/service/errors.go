package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
)

// ErrorKind 业务错误分类
type ErrorKind string

const (
	KindValidation   ErrorKind = "VALIDATION_ERROR"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindConflict     ErrorKind = "CONFLICT"
	KindNotFound     ErrorKind = "NOT_FOUND"
)

// Error 业务规则拒绝；Field 指向出错字段或行
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError 输入非法或数量越界
func ValidationError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError 当前状态不允许该操作
func InvalidStateError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError 并发冲突或重复提交
func ConflictError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError 引用的单据或行不存在
func NotFoundError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf 提取业务错误分类，非业务错误返回空
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// translate 仓库层并发冲突转为业务 ConflictError
func translate(err error) error {
	switch {
	case err == nil || KindOf(err) != "":
		return err
	case errors.Is(err, repository.ErrStale):
		return ConflictError("", "数据已被并发修改，请重试")
	case errors.Is(err, repository.ErrDuplicate):
		return ConflictError("", "单据编号冲突，请重试")
	}
	return err
}

// mapNotFound 仓库层 ErrNotFound 转为业务 NotFoundError
func mapNotFound(err error, field, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError(field, "%s不存在: %s", what, id)
	}
	return err
}

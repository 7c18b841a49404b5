package errors

import (
	"errors"
	"fmt"
)

// ── 错误分类 ──
// 所有业务错误归入三类之一，Handler 层据此映射 HTTP 状态码。
// 跨租户 / 跨分校的访问一律报告为 NotFound，不暴露记录是否存在。

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = &Error{Kind: ErrConflict, Message: "Record was modified by another operation, please reload and retry"}

// Error 带分类的业务错误
// errors.Is(err, ErrConflict) 判断分类；Message 原样返回给调用方
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap 使 errors.Is 可以命中分类哨兵
func (e *Error) Unwrap() error { return e.Kind }

// NotFound 构造 NotFound 类错误
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput 构造 InvalidInput 类错误
func InvalidInput(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Conflict 构造 Conflict 类错误
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf 返回错误所属分类；非业务错误返回 nil
func KindOf(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return nil
	}
}

package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类
// Unauthorized/NotFound 直接向上传播；Validation 在计算前拒绝；
// Downstream 包装存储层失败并携带发起操作名，禁止静默降级为零值。
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindDownstream   Kind = "downstream"
)

// Error 带分类与操作名的错误
type Error struct {
	Kind Kind
	Op   string // 发起操作名，如 "outcome.conversion_rate"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 构造分类错误
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation 参数校验失败
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Downstream 存储层失败
func Downstream(op string, err error) *Error {
	return &Error{Kind: KindDownstream, Op: op, Err: err}
}

// NotFound 引用对象不存在
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// Unauthorized 缺少可用于限定查询范围的身份
func Unauthorized(op string) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Err: errors.New("缺少有效身份")}
}

// IsKind 判断错误链上是否存在指定分类
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// OpOf 取错误链上最内层操作名，未分类错误返回空串
func OpOf(err error) string {
	op := ""
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		op = e.Op
		err = e.Err
	}
	return op
}

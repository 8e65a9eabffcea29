package payerr

import (
	"errors"
	"fmt"
)

// Error 支付结算错误，按 Code 区分类别
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别错误视为相等，支持 errors.Is(err, payerr.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 错误码定义
const (
	CodeNotFound              = 7401
	CodeUnsupportedType       = 7402
	CodeInvalidState          = 7403
	CodeAmountMismatch        = 7404
	CodeVerificationFailed    = 7405
	CodeGatewayError          = 7406
	CodeDownstreamCreditError = 7407
	CodeUnsupportedPayment    = 7408
	CodeStatusConflict        = 7409
)

// 错误类别
var (
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnsupportedType       = &Error{Code: CodeUnsupportedType, Message: "unsupported source order type"}
	ErrInvalidState          = &Error{Code: CodeInvalidState, Message: "invalid payment order state"}
	ErrAmountMismatch        = &Error{Code: CodeAmountMismatch, Message: "paid amount does not match order amount"}
	ErrVerificationFailed    = &Error{Code: CodeVerificationFailed, Message: "notification verification failed"}
	ErrGatewayError          = &Error{Code: CodeGatewayError, Message: "payment gateway error"}
	ErrDownstreamCreditError = &Error{Code: CodeDownstreamCreditError, Message: "downstream order processing failed"}
	ErrUnsupportedPayment    = &Error{Code: CodeUnsupportedPayment, Message: "unsupported payment method"}
	ErrStatusConflict        = &Error{Code: CodeStatusConflict, Message: "payment order status changed concurrently"}
)

// New 创建指定类别的错误
func New(kind *Error, message string) *Error {
	return &Error{Code: kind.Code, Message: message}
}

// Newf 创建指定类别的格式化错误
func Newf(kind *Error, format string, args ...interface{}) *Error {
	return &Error{Code: kind.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 以指定类别包装底层错误
func Wrap(kind *Error, message string, err error) *Error {
	return &Error{Code: kind.Code, Message: message, Err: err}
}

// CodeOf 取错误码，非本包错误返回 0
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// MessageOf 取面向调用方的错误信息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

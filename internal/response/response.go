package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/payerr"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Fail 失败响应，业务码与 HTTP 状态码一致
func Fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{Code: httpStatus, Message: message})
}

// FailWithCode 失败响应，携带业务错误码
func FailWithCode(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{Code: code, Message: message})
}

// FromError 按错误类别输出失败响应
func FromError(c *gin.Context, err error) {
	var e *payerr.Error
	if !errors.As(err, &e) {
		Fail(c, http.StatusInternalServerError, "internal server error")
		return
	}
	FailWithCode(c, StatusOf(err), e.Code, e.Message)
}

// StatusOf 错误类别对应的 HTTP 状态码
func StatusOf(err error) int {
	switch payerr.CodeOf(err) {
	case payerr.CodeNotFound:
		return http.StatusNotFound
	case payerr.CodeUnsupportedType, payerr.CodeInvalidState, payerr.CodeUnsupportedPayment:
		return http.StatusBadRequest
	case payerr.CodeStatusConflict:
		return http.StatusConflict
	case payerr.CodeVerificationFailed:
		return http.StatusUnauthorized
	case payerr.CodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

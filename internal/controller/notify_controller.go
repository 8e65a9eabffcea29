package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/response"
	"go.uber.org/zap"
)

// maxNotifyBody 回调报文上限，超出时整体拒绝，不做截断
const maxNotifyBody = 1 << 20

// NotifyHandler 支付回调处理
type NotifyHandler interface {
	Handle(ctx context.Context, method string, header http.Header, body []byte) error
}

// NotifyController 回调控制器
type NotifyController struct {
	handler NotifyHandler
}

// NewNotifyController 创建回调控制器
func NewNotifyController(handler NotifyHandler) *NotifyController {
	return &NotifyController{handler: handler}
}

// notifyReply 网关约定的应答格式
type notifyReply struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Notify 支付回调
// 处理成功返回 200，否则返回非 2xx 由网关按自身策略重试
// @Summary 支付回调
// @Tags 支付回调
// @Accept json
// @Produce json
// @Param method path string true "支付方式" example:"wechat"
// @Success 200 {object} notifyReply
// @Failure 401 {object} notifyReply
// @Failure 413 {object} notifyReply
// @Router /api/v1/payment/notify/{method} [post]
func (nc *NotifyController) Notify(c *gin.Context) {
	method := c.Param("method")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxNotifyBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Logger.Warn("回调报文超出大小上限，已拒绝",
				zap.String("payment", method),
				zap.Int64("limit", tooLarge.Limit),
				zap.Int64("content_length", c.Request.ContentLength))
			c.JSON(http.StatusRequestEntityTooLarge, notifyReply{Code: "FAIL", Message: "body too large"})
			return
		}
		logger.Logger.Warn("读取回调报文失败", zap.String("payment", method), zap.Error(err))
		c.JSON(http.StatusBadRequest, notifyReply{Code: "FAIL", Message: "unreadable body"})
		return
	}

	if err := nc.handler.Handle(c.Request.Context(), method, c.Request.Header, body); err != nil {
		status := response.StatusOf(err)
		logger.Logger.Warn("支付回调处理失败",
			zap.String("payment", method),
			zap.Int("status", status),
			zap.Error(err))
		message := "internal error"
		if payerr.CodeOf(err) != 0 {
			message = payerr.MessageOf(err)
		}
		c.JSON(status, notifyReply{Code: "FAIL", Message: message})
		return
	}

	c.JSON(http.StatusOK, notifyReply{Code: "SUCCESS"})
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDKey 上下文中的请求ID
const RequestIDKey = "request_id"

// Logger 请求日志中间件，缺少 X-Request-ID 时生成一个并回写响应头
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set(RequestIDKey, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Logger.Error("请求处理失败", fields...)
		case status >= 400:
			logger.Logger.Warn("请求参数或状态错误", fields...)
		default:
			logger.Logger.Info("请求完成", fields...)
		}
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/response"
	"go.uber.org/zap"
)

// Recovery 异常恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.Stack("stack"))

				response.Fail(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

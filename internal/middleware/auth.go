package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-pay-settlement/internal/response"
)

// StoreIDKey 上下文中的店铺ID
const StoreIDKey = "store_id"

// Auth JWT 认证中间件，令牌中必须携带 store_id
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Fail(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		// 检查 Bearer 前缀
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Fail(c, http.StatusUnauthorized, "malformed authorization token")
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Fail(c, http.StatusUnauthorized, "invalid authorization token")
			c.Abort()
			return
		}

		storeID := claimString(claims["store_id"])
		if storeID == "" {
			response.Fail(c, http.StatusUnauthorized, "token has no store")
			c.Abort()
			return
		}

		c.Set(StoreIDKey, storeID)
		c.Set("user_id", claims["user_id"])
		c.Next()
	}
}

// StoreID 当前请求所属店铺
func StoreID(c *gin.Context) string {
	return c.GetString(StoreIDKey)
}

// claimString 数字类型的声明按整数输出
func claimString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return ""
	}
}

package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/response"
)

// MetricsAuth 指标端点认证，Bearer/查询参数 Token 或 IP 白名单任一通过即可。
// 未配置 Token 时放行。
func MetricsAuth(cfg config.MonitoringConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.MetricsToken == "" {
			c.Next()
			return
		}

		if bearerToken(c) == cfg.MetricsToken || c.Query("token") == cfg.MetricsToken {
			c.Next()
			return
		}

		if ipAllowed(c.ClientIP(), cfg.MetricsIPWhitelist) {
			c.Next()
			return
		}

		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		c.Abort()
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func ipAllowed(clientIP string, whitelist []string) bool {
	for _, allowed := range whitelist {
		switch {
		case allowed == "*", allowed == clientIP:
			return true
		case strings.Contains(allowed, "/") && isIPInCIDR(clientIP, allowed):
			return true
		}
	}
	return false
}

// isIPInCIDR 检查 IP 是否在 CIDR 范围内
func isIPInCIDR(ip, cidr string) bool {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	return ipNet.Contains(parsedIP)
}

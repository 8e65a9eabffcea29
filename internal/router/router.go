package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/controller"
	"github.com/golang-pay-settlement/internal/middleware"
)

// Deps 路由依赖的应用服务
type Deps struct {
	Payments controller.PaymentOrders
	Notify   controller.NotifyHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置运行模式
	if cfg.App.Mode != "" {
		gin.SetMode(cfg.App.Mode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
	})
	r.GET("/metrics", middleware.MetricsAuth(cfg.Monitoring), middleware.PrometheusHandler())

	paymentController := controller.NewPaymentController(deps.Payments)
	notifyController := controller.NewNotifyController(deps.Notify)

	api := r.Group("/api/v1")
	{
		payment := api.Group("/payment")
		{
			payment.GET("/methods", paymentController.Methods)
			payment.GET("/statuses", paymentController.Statuses)
			payment.POST("/notify/:method", notifyController.Notify) // 网关回调，签名校验代替认证
		}

		orders := api.Group("/payment-orders", middleware.Auth(cfg.JWT.Secret))
		{
			orders.POST("", paymentController.Create)
			orders.GET("/has", paymentController.Has)
			orders.GET("/:id", paymentController.Get)
			orders.POST("/:id/pay", paymentController.Pay)
			orders.POST("/:id/check", paymentController.Check)
			orders.POST("/:id/cancel", paymentController.Cancel)
		}
	}

	return r
}

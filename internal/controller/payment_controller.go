package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/middleware"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/response"
	"github.com/golang-pay-settlement/internal/service"
)

// PaymentOrders 支付单应用服务
type PaymentOrders interface {
	Create(ctx context.Context, storeID, sourceOrderType, sourceOrderID string) (*models.PaymentOrder, error)
	Get(ctx context.Context, storeID, id string) (*models.PaymentOrder, error)
	Has(ctx context.Context, storeID, sourceOrderType, status string) (bool, error)
	Pay(ctx context.Context, storeID, id string) (*service.PayResult, error)
	Check(ctx context.Context, storeID, id string) (*service.CheckResult, error)
	Cancel(ctx context.Context, storeID, id string) (bool, error)
	Methods() []string
	Statuses() []models.StatusLabel
}

// PaymentController 支付单控制器
type PaymentController struct {
	payments PaymentOrders
}

// NewPaymentController 创建支付单控制器
func NewPaymentController(payments PaymentOrders) *PaymentController {
	return &PaymentController{payments: payments}
}

// CreatePaymentOrderRequest 创建支付单请求
type CreatePaymentOrderRequest struct {
	SourceOrderType string `json:"source_order_type" binding:"required"`
	SourceOrderID   string `json:"source_order_id" binding:"required"`
}

// Create 创建支付单
// @Summary 创建支付单
// @Tags 支付单
// @Accept json
// @Produce json
// @Param request body CreatePaymentOrderRequest true "来源订单"
// @Success 200 {object} response.Response{data=models.PaymentOrder}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/payment-orders [post]
func (pc *PaymentController) Create(c *gin.Context) {
	var req CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	order, err := pc.payments.Create(c.Request.Context(), middleware.StoreID(c), req.SourceOrderType, req.SourceOrderID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// Get 查询支付单
// @Summary 查询支付单
// @Tags 支付单
// @Produce json
// @Param id path string true "支付单ID"
// @Success 200 {object} response.Response{data=models.PaymentOrder}
// @Failure 404 {object} response.Response
// @Router /api/v1/payment-orders/{id} [get]
func (pc *PaymentController) Get(c *gin.Context) {
	order, err := pc.payments.Get(c.Request.Context(), middleware.StoreID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// Has 是否存在指定状态的支付单，status 为空时按 pending 查询
// @Summary 是否存在支付单
// @Tags 支付单
// @Produce json
// @Param source_order_type query string true "来源订单类型"
// @Param status query string false "支付单状态"
// @Success 200 {object} response.Response{data=bool}
// @Router /api/v1/payment-orders/has [get]
func (pc *PaymentController) Has(c *gin.Context) {
	sourceOrderType := c.Query("source_order_type")
	if sourceOrderType == "" {
		response.Fail(c, http.StatusBadRequest, "source_order_type is required")
		return
	}

	exists, err := pc.payments.Has(c.Request.Context(), middleware.StoreID(c), sourceOrderType, c.Query("status"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, exists)
}

// Pay 发起支付，返回二维码内容
// @Summary 发起支付
// @Tags 支付单
// @Produce json
// @Param id path string true "支付单ID"
// @Success 200 {object} response.Response{data=service.PayResult}
// @Failure 502 {object} response.Response
// @Router /api/v1/payment-orders/{id}/pay [post]
func (pc *PaymentController) Pay(c *gin.Context) {
	result, err := pc.payments.Pay(c.Request.Context(), middleware.StoreID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Check 主动查单
// @Summary 查单
// @Tags 支付单
// @Produce json
// @Param id path string true "支付单ID"
// @Success 200 {object} response.Response{data=service.CheckResult}
// @Router /api/v1/payment-orders/{id}/check [post]
func (pc *PaymentController) Check(c *gin.Context) {
	result, err := pc.payments.Check(c.Request.Context(), middleware.StoreID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Cancel 取消支付单
// @Summary 取消支付单
// @Tags 支付单
// @Produce json
// @Param id path string true "支付单ID"
// @Success 200 {object} response.Response{data=object}
// @Router /api/v1/payment-orders/{id}/cancel [post]
func (pc *PaymentController) Cancel(c *gin.Context) {
	cancelled, err := pc.payments.Cancel(c.Request.Context(), middleware.StoreID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": cancelled})
}

// Methods 可用支付方式
func (pc *PaymentController) Methods(c *gin.Context) {
	response.Success(c, pc.payments.Methods())
}

// Statuses 支付单状态列表
func (pc *PaymentController) Statuses(c *gin.Context) {
	response.Success(c, pc.payments.Statuses())
}

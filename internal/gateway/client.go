package gateway

import (
	"context"
	"time"

	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/metrics"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"go.uber.org/zap"
)

// CallLogStore 网关调用日志存储
type CallLogStore interface {
	Create(ctx context.Context, log *models.GatewayCallLog) error
	UpdateOutcome(ctx context.Context, id int64, status, message string) error
}

// QueryResult 查单结果及对应的调用日志ID，供结算完成后回写结果
type QueryResult struct {
	TradeStatus
	CallLogID int64
}

// Client 支付网关客户端
// 每次对外调用无论成功与否都先写入调用日志，再把结果或错误返回给调用方
type Client struct {
	registry *Registry
	logs     CallLogStore
}

// NewClient 创建支付网关客户端
func NewClient(registry *Registry, logs CallLogStore) *Client {
	return &Client{registry: registry, logs: logs}
}

// Methods 可用的支付方式
func (c *Client) Methods() []string {
	return c.registry.Methods()
}

// CreateIntent 网关下单
func (c *Client) CreateIntent(ctx context.Context, order *models.PaymentOrder) (*Intent, error) {
	p, err := c.registry.Get(order.Payment)
	if err != nil {
		return nil, err
	}

	ex := &Exchange{}
	start := time.Now()
	intent, err := p.CreateIntent(ctx, IntentRequest{
		Reference:   EncodeReference(order.ID),
		Description: order.Name,
		Amount:      order.Amount,
	}, ex)
	c.observe(order.Payment, models.GatewayActionCreate, start)

	log := c.newLog(order, models.GatewayActionCreate, ex)
	if err != nil {
		log.Status = models.LogStatusFail
		log.Message = err.Error()
		c.record(ctx, log)
		return nil, payerr.Wrap(payerr.ErrGatewayError, "create payment intent", err)
	}

	log.Status = models.LogStatusSuccess
	c.record(ctx, log)
	return intent, nil
}

// CloseIntent 网关关单
// 网关拒绝确认关闭时返回 false；网关以“已终结”拒绝时按成功处理
func (c *Client) CloseIntent(ctx context.Context, order *models.PaymentOrder) (bool, error) {
	p, err := c.registry.Get(order.Payment)
	if err != nil {
		return false, err
	}

	ex := &Exchange{}
	start := time.Now()
	result, err := p.CloseIntent(ctx, EncodeReference(order.ID), ex)
	c.observe(order.Payment, models.GatewayActionClose, start)

	log := c.newLog(order, models.GatewayActionClose, ex)
	if err != nil {
		log.Status = models.LogStatusFail
		log.Message = err.Error()
		c.record(ctx, log)
		return false, payerr.Wrap(payerr.ErrGatewayError, "close payment intent", err)
	}

	switch {
	case result.AlreadyFinalized:
		log.Status = models.LogStatusSuccess
		log.Message = "closed: intent already finalized"
		logger.Logger.Info("网关关单返回已终结，按关单成功处理",
			zap.String("order_id", order.ID),
			zap.String("payment", order.Payment))
	case result.Closed:
		log.Status = models.LogStatusSuccess
		log.Message = "closed"
	default:
		log.Status = models.LogStatusFail
		log.Message = result.Message
	}
	c.record(ctx, log)

	return log.Status == models.LogStatusSuccess, nil
}

// QueryStatus 网关查单
// 返回的 CallLogID 对应本次调用日志，支付成功时由结算流程回写最终结果
func (c *Client) QueryStatus(ctx context.Context, order *models.PaymentOrder) (*QueryResult, error) {
	p, err := c.registry.Get(order.Payment)
	if err != nil {
		return nil, err
	}

	ex := &Exchange{}
	start := time.Now()
	status, err := p.QueryStatus(ctx, EncodeReference(order.ID), ex)
	c.observe(order.Payment, models.GatewayActionQuery, start)

	log := c.newLog(order, models.GatewayActionQuery, ex)
	if err != nil {
		log.Status = models.LogStatusFail
		log.Message = err.Error()
		c.record(ctx, log)
		return nil, payerr.Wrap(payerr.ErrGatewayError, "query payment status", err)
	}

	if status.Paid() {
		log.Status = models.LogStatusSuccess
	} else {
		log.Status = models.LogStatusFail
	}
	log.Message = status.Description
	c.record(ctx, log)

	return &QueryResult{TradeStatus: *status, CallLogID: log.ID}, nil
}

// RecordOutcome 回写查单触发的结算结果
func (c *Client) RecordOutcome(ctx context.Context, callLogID int64, status, message string) error {
	if callLogID == 0 {
		return nil
	}
	return c.logs.UpdateOutcome(ctx, callLogID, status, message)
}

func (c *Client) newLog(order *models.PaymentOrder, action string, ex *Exchange) *models.GatewayCallLog {
	return &models.GatewayCallLog{
		StoreID:        order.StoreID,
		PaymentOrderID: order.ID,
		Payment:        order.Payment,
		Action:         action,
		RequestURL:     ex.URL,
		RequestData:    ex.Request,
		ResponseData:   ex.Response,
	}
}

// record 写调用日志，写入失败只记录错误日志，不覆盖网关调用本身的结果
func (c *Client) record(ctx context.Context, log *models.GatewayCallLog) {
	metrics.GatewayCallTotal.WithLabelValues(log.Payment, log.Action, log.Status).Inc()
	if err := c.logs.Create(ctx, log); err != nil {
		logger.Logger.Error("写入网关调用日志失败",
			zap.String("order_id", log.PaymentOrderID),
			zap.String("action", log.Action),
			zap.String("status", log.Status),
			zap.Error(err))
	}
}

func (c *Client) observe(payment, action string, start time.Time) {
	metrics.GatewayCallDuration.WithLabelValues(payment, action).Observe(time.Since(start).Seconds())
}

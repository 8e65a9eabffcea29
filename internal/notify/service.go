package notify

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/metrics"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/settlement"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// LogStore 回调日志存储
type LogStore interface {
	Create(ctx context.Context, log *models.NotificationLog) error
	Update(ctx context.Context, log *models.NotificationLog) error
}

// OrderLoader 加载支付单
type OrderLoader interface {
	Get(ctx context.Context, id string) (*models.PaymentOrder, error)
}

// WebhookProviders 按支付方式查找支持签名回调的网关
type WebhookProviders interface {
	Webhook(method string) (gateway.WebhookProvider, error)
}

// Settler 回调路径的结算
type Settler interface {
	SettleNotification(ctx context.Context, log *models.NotificationLog, orderID, amount string) (*settlement.Outcome, error)
}

// Service 支付回调处理
// 每次回调先写入一条 unknown 日志，再验证、结算，最终结果原地更新到同一条日志
type Service struct {
	providers WebhookProviders
	verifier  *Verifier
	logs      LogStore
	orders    OrderLoader
	settler   Settler
}

// NewService 创建回调处理服务
func NewService(providers WebhookProviders, verifier *Verifier, logs LogStore, orders OrderLoader, settler Settler) *Service {
	return &Service{
		providers: providers,
		verifier:  verifier,
		logs:      logs,
		orders:    orders,
		settler:   settler,
	}
}

// Handle 处理一次回调，返回错误时 HTTP 层应返回非 2xx，由网关重试
func (s *Service) Handle(ctx context.Context, method string, header http.Header, body []byte) error {
	log := &models.NotificationLog{
		Payment: method,
		Header:  headerJSON(header),
		Body:    string(body),
		Status:  models.LogStatusUnknown,
	}
	if err := s.logs.Create(ctx, log); err != nil {
		logger.Logger.Error("写入回调日志失败", zap.String("payment", method), zap.Error(err))
		return err
	}

	provider, err := s.providers.Webhook(method)
	if err != nil {
		return s.fail(ctx, log, MessageUnsupportedPayment, err)
	}

	event, err := s.verifier.Verify(provider, provider.ExtractHeaders(header), body)
	if err != nil {
		return s.fail(ctx, log, payerr.MessageOf(err), err)
	}
	log.Data = datatypes.JSON(event.Plaintext)

	orderID, err := gateway.DecodeReference(event.Reference)
	if err != nil {
		return s.fail(ctx, log, MessageUnknownReference, err)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return s.fail(ctx, log, payerr.MessageOf(err), err)
	}
	log.PaymentOrderID = order.ID
	log.StoreID = order.StoreID

	if !event.Paid() {
		// 网关报告的非成功状态属于正常结果，不视为错误
		log.Status = models.LogStatusFail
		log.Message = "trade state " + event.TradeState
		if event.Description != "" {
			log.Message += ": " + event.Description
		}
		s.update(ctx, log)
		metrics.NotificationTotal.WithLabelValues(method, log.Status).Inc()
		logger.Logger.Info("支付回调交易状态非成功",
			zap.String("order_id", order.ID),
			zap.String("trade_state", event.TradeState))
		return nil
	}

	outcome, err := s.settler.SettleNotification(ctx, log, order.ID, event.Amount)
	metrics.NotificationTotal.WithLabelValues(method, log.Status).Inc()
	if err != nil {
		return err
	}
	logger.Logger.Info("支付回调处理完成",
		zap.String("order_id", order.ID),
		zap.String("payment", method),
		zap.String("status", outcome.LogStatus))
	return nil
}

// fail 记录失败结果并原样返回错误
func (s *Service) fail(ctx context.Context, log *models.NotificationLog, message string, err error) error {
	log.Status = models.LogStatusFail
	log.Message = message
	s.update(ctx, log)
	metrics.NotificationTotal.WithLabelValues(log.Payment, log.Status).Inc()
	logger.Logger.Warn("支付回调处理失败",
		zap.Int64("notification_log_id", log.ID),
		zap.String("payment", log.Payment),
		zap.String("message", message),
		zap.Error(err))
	return err
}

func (s *Service) update(ctx context.Context, log *models.NotificationLog) {
	if err := s.logs.Update(ctx, log); err != nil {
		logger.Logger.Error("更新回调日志失败",
			zap.Int64("notification_log_id", log.ID),
			zap.Error(err))
	}
}

// headerJSON 请求头序列化为 JSON，多值只保留第一个
func headerJSON(h http.Header) datatypes.JSON {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

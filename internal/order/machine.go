package order

import (
	"context"
	"errors"

	"github.com/golang-pay-settlement/internal/downstream"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/utils"
	"go.uber.org/zap"
)

// Store 支付单持久化
type Store interface {
	Get(ctx context.Context, id string) (*models.PaymentOrder, error)
	Create(ctx context.Context, order *models.PaymentOrder) error
	UpdateStatus(ctx context.Context, id, from, to, message string) error
	Exists(ctx context.Context, storeID, sourceOrderType, status string) (bool, error)
}

// Downstream 下游订单端口
type Downstream interface {
	Resolve(ctx context.Context, sourceOrderType, sourceOrderID string) (*downstream.SourceOrder, error)
	Credit(ctx context.Context, sourceOrderType, sourceOrderID string) error
	Cancel(ctx context.Context, sourceOrderType, sourceOrderID string) error
}

// IntentCloser 关闭网关侧支付意图
type IntentCloser interface {
	CloseIntent(ctx context.Context, order *models.PaymentOrder) (bool, error)
}

// EventPublisher 支付单状态事件发布
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, order *models.PaymentOrder, from string)
}

// Machine 支付单状态机，所有状态写入都经过这里
type Machine struct {
	orders     Store
	downstream Downstream
	closer     IntentCloser
	events     EventPublisher
}

// NewMachine 创建支付单状态机，events 可为 nil
func NewMachine(orders Store, ds Downstream, closer IntentCloser, events EventPublisher) *Machine {
	return &Machine{orders: orders, downstream: ds, closer: closer, events: events}
}

// CreateRequest 创建支付单请求
type CreateRequest struct {
	StoreID         string
	SourceOrderType string
	SourceOrderID   string
}

// PaidResult 支付确认的处理结果
type PaidResult struct {
	Status  string // paid / fail / exception
	Message string
	Cause   error // fail 为 ErrAmountMismatch，exception 为 ErrDownstreamCreditError
}

// Create 根据下游订单创建待付款支付单，金额与支付方式取自下游订单
func (m *Machine) Create(ctx context.Context, req CreateRequest) (*models.PaymentOrder, error) {
	source, err := m.downstream.Resolve(ctx, req.SourceOrderType, req.SourceOrderID)
	if err != nil {
		return nil, err
	}

	order := &models.PaymentOrder{
		ID:              utils.GenerateID(),
		StoreID:         req.StoreID,
		SourceOrderType: req.SourceOrderType,
		SourceOrderID:   req.SourceOrderID,
		Name:            source.Name,
		Amount:          source.Amount,
		Payment:         source.Payment,
		Status:          models.PaymentOrderStatusPending,
	}
	if err := m.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	logger.Logger.Info("支付单已创建",
		zap.String("order_id", order.ID),
		zap.String("store_id", order.StoreID),
		zap.String("source_order_type", order.SourceOrderType),
		zap.String("source_order_id", order.SourceOrderID),
		zap.String("amount", order.AmountString()),
		zap.String("payment", order.Payment))
	return order, nil
}

// Get 加载支付单
func (m *Machine) Get(ctx context.Context, id string) (*models.PaymentOrder, error) {
	return m.orders.Get(ctx, id)
}

// Paid 确认支付
//
// 已是 paid 时直接返回，不产生任何副作用。金额按两位小数字符串精确比对，
// 不一致时转为 fail。下游入账失败时转为 exception 并保留错误信息，
// 款项已到账，不回滚支付，交由人工对账。
func (m *Machine) Paid(ctx context.Context, id, observedAmount string) (*PaidResult, error) {
	order, err := m.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == models.PaymentOrderStatusPaid {
		logger.Logger.Debug("支付单已是已付款状态，跳过",
			zap.String("order_id", id))
		return &PaidResult{Status: models.PaymentOrderStatusPaid, Message: order.Message}, nil
	}
	if order.Status != models.PaymentOrderStatusPending {
		return nil, payerr.Newf(payerr.ErrInvalidState, "payment order %s is %s, cannot be paid", id, order.Status)
	}

	if observedAmount != order.AmountString() {
		cause := payerr.Newf(payerr.ErrAmountMismatch, "amount mismatch: expected %s, paid %s", order.AmountString(), observedAmount)
		message := cause.Error()
		logger.Logger.Warn("支付金额与支付单金额不一致",
			zap.String("order_id", id),
			zap.String("expected", order.AmountString()),
			zap.String("observed", observedAmount))
		if err := m.transition(ctx, order, models.PaymentOrderStatusFail, message); err != nil {
			return m.reconcile(ctx, id, err)
		}
		return &PaidResult{Status: models.PaymentOrderStatusFail, Message: message, Cause: cause}, nil
	}

	if err := m.downstream.Credit(ctx, order.SourceOrderType, order.SourceOrderID); err != nil {
		cause := payerr.Wrap(payerr.ErrDownstreamCreditError, "payment received, but downstream processing failed", err)
		message := utils.Truncate(cause.Error(), models.MaxMessageLength)
		logger.Logger.Error("下游订单入账失败，支付单转为异常",
			zap.String("order_id", id),
			zap.String("source_order_type", order.SourceOrderType),
			zap.String("source_order_id", order.SourceOrderID),
			zap.Error(cause))
		if err := m.transition(ctx, order, models.PaymentOrderStatusException, message); err != nil {
			return m.reconcile(ctx, id, err)
		}
		return &PaidResult{Status: models.PaymentOrderStatusException, Message: message, Cause: cause}, nil
	}

	if err := m.transition(ctx, order, models.PaymentOrderStatusPaid, ""); err != nil {
		return m.reconcile(ctx, id, err)
	}
	return &PaidResult{Status: models.PaymentOrderStatusPaid}, nil
}

// reconcile 状态写入因并发修改被拒绝时，重新加载：已被其他流程确认支付则视为成功
func (m *Machine) reconcile(ctx context.Context, id string, cause error) (*PaidResult, error) {
	if !errors.Is(cause, errStatusConflict) {
		return nil, cause
	}
	current, err := m.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PaymentOrderStatusPaid {
		return &PaidResult{Status: models.PaymentOrderStatusPaid, Message: current.Message}, nil
	}
	return nil, cause
}

// Cancel 取消支付单
// 先取消下游订单，再关闭网关侧支付意图，仅当网关确认关闭时才转为 cancelled
func (m *Machine) Cancel(ctx context.Context, id string) (bool, error) {
	order, err := m.orders.Get(ctx, id)
	if err != nil {
		return false, err
	}

	if order.Status == models.PaymentOrderStatusCancelled {
		return true, nil
	}
	if order.Status != models.PaymentOrderStatusPending {
		return false, payerr.Newf(payerr.ErrInvalidState, "payment order %s is %s, only pending orders can be cancelled", id, order.Status)
	}

	if err := m.downstream.Cancel(ctx, order.SourceOrderType, order.SourceOrderID); err != nil {
		return false, err
	}

	closed, err := m.closer.CloseIntent(ctx, order)
	if err != nil {
		return false, err
	}
	if !closed {
		logger.Logger.Warn("网关未确认关单，支付单保持待付款",
			zap.String("order_id", id))
		return false, nil
	}

	if err := m.transition(ctx, order, models.PaymentOrderStatusCancelled, ""); err != nil {
		return false, err
	}
	return true, nil
}

// Expire 超时关单，网关已确认关闭后调用
func (m *Machine) Expire(ctx context.Context, id string) error {
	order, err := m.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status == models.PaymentOrderStatusExpired {
		return nil
	}
	if order.Status != models.PaymentOrderStatusPending {
		return payerr.Newf(payerr.ErrInvalidState, "payment order %s is %s, only pending orders can expire", id, order.Status)
	}
	return m.transition(ctx, order, models.PaymentOrderStatusExpired, "payment timed out")
}

// Has 店铺下是否存在指定来源类型、指定状态的支付单，status 为空时按待付款查询
func (m *Machine) Has(ctx context.Context, storeID, sourceOrderType, status string) (bool, error) {
	if status == "" {
		status = models.PaymentOrderStatusPending
	}
	if !models.IsPaymentOrderStatus(status) {
		return false, payerr.Newf(payerr.ErrInvalidState, "unknown payment order status: %s", status)
	}
	return m.orders.Exists(ctx, storeID, sourceOrderType, status)
}

// StatusLabels 状态键值对
func StatusLabels() []models.StatusLabel {
	return models.PaymentOrderStatusLabels
}

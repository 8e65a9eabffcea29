package order

import (
	"context"
	"errors"

	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/metrics"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/repository"
	"go.uber.org/zap"
)

var errStatusConflict = repository.ErrStatusConflict

// transitions 允许的状态流转，只能从 pending 出发
var transitions = map[string]map[string]bool{
	models.PaymentOrderStatusPending: {
		models.PaymentOrderStatusPaid:      true,
		models.PaymentOrderStatusFail:      true,
		models.PaymentOrderStatusException: true,
		models.PaymentOrderStatusExpired:   true,
		models.PaymentOrderStatusCancelled: true,
	},
}

// CanTransition 是否允许从 from 流转到 to
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// transition 以加载时的状态为条件写入新状态
// 并发修改导致条件不满足时返回 errStatusConflict，内存中的快照保持不变
func (m *Machine) transition(ctx context.Context, order *models.PaymentOrder, to, message string) error {
	from := order.Status
	if !CanTransition(from, to) {
		return payerr.Newf(payerr.ErrInvalidState, "payment order %s cannot move from %s to %s", order.ID, from, to)
	}

	if err := m.orders.UpdateStatus(ctx, order.ID, from, to, message); err != nil {
		if errors.Is(err, errStatusConflict) {
			logger.Logger.Warn("支付单状态已被并发修改，放弃本次写入",
				zap.String("order_id", order.ID),
				zap.String("from", from),
				zap.String("to", to))
		}
		return err
	}

	order.Status = to
	order.Message = message
	metrics.OrderTransitionTotal.WithLabelValues(from, to).Inc()
	logger.Logger.Info("支付单状态已更新",
		zap.String("order_id", order.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("message", message))

	if m.events != nil {
		m.events.PublishStatusChanged(ctx, order, from)
	}
	return nil
}

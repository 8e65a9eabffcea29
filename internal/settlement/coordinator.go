package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/lock"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/metrics"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/order"
	"github.com/golang-pay-settlement/internal/utils"
	"go.uber.org/zap"
)

// 结算来源
const (
	PathPoll   = "poll"
	PathNotify = "notify"
)

// DefaultLockTTL 结算锁默认有效期
const DefaultLockTTL = 600 * time.Second

const lockKeyPrefix = "settlement:paid:"

// LockKey 支付单结算锁的键
func LockKey(orderID string) string {
	return lockKeyPrefix + orderID
}

// Payer 支付确认，由支付单状态机实现
type Payer interface {
	Paid(ctx context.Context, id, observedAmount string) (*order.PaidResult, error)
}

// Locker 非阻塞咨询锁
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*lock.Handle, error)
	Release(ctx context.Context, h *lock.Handle) error
}

// CallRecorder 回写查单调用日志
type CallRecorder interface {
	RecordOutcome(ctx context.Context, callLogID int64, status, message string) error
}

// NotificationRecorder 回写回调日志
type NotificationRecorder interface {
	Update(ctx context.Context, log *models.NotificationLog) error
}

// Outcome 一次结算的结果
type Outcome struct {
	OrderStatus string // 状态机处理后的支付单状态，锁被占用时为空
	LogStatus   string // 写入日志的结果：success / fail / exception
	Message     string
	Contended   bool // 锁已被占用，本次未调用状态机
}

// Paid 支付单是否已确认支付（包括由其他并发流程处理的情况）
func (o *Outcome) Paid() bool {
	return o.Contended || o.OrderStatus == models.PaymentOrderStatusPaid
}

// Coordinator 结算协调器
//
// 查单与回调两条路径都经由这里把“已支付”事实交给状态机。
// 以 settlement:paid:<id> 为键的锁保证同一支付单在锁有效期内最多入账一次；
// 锁不主动释放，有效期即为重复通知的去重窗口。状态机调用出错时释放锁，允许重试。
type Coordinator struct {
	payer         Payer
	locker        Locker
	calls         CallRecorder
	notifications NotificationRecorder
	lockTTL       time.Duration
}

// NewCoordinator 创建结算协调器
func NewCoordinator(payer Payer, locker Locker, calls CallRecorder, notifications NotificationRecorder, lockTTL time.Duration) *Coordinator {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Coordinator{
		payer:         payer,
		locker:        locker,
		calls:         calls,
		notifications: notifications,
		lockTTL:       lockTTL,
	}
}

// SettlePoll 处理主动查单得到的支付成功结果，并回写本次查单的调用日志
func (c *Coordinator) SettlePoll(ctx context.Context, orderID string, result *gateway.QueryResult) (*Outcome, error) {
	outcome, err := c.settle(ctx, orderID, result.Amount, PathPoll)
	if recErr := c.calls.RecordOutcome(ctx, result.CallLogID, outcome.LogStatus, outcome.Message); recErr != nil {
		logger.Logger.Error("回写查单日志失败",
			zap.String("order_id", orderID),
			zap.Int64("call_log_id", result.CallLogID),
			zap.Error(recErr))
	}
	return outcome, err
}

// SettleNotification 处理已验签的支付成功回调，并回写回调日志
func (c *Coordinator) SettleNotification(ctx context.Context, log *models.NotificationLog, orderID, amount string) (*Outcome, error) {
	outcome, err := c.settle(ctx, orderID, amount, PathNotify)
	log.Status = outcome.LogStatus
	log.Message = outcome.Message
	if recErr := c.notifications.Update(ctx, log); recErr != nil {
		logger.Logger.Error("回写回调日志失败",
			zap.String("order_id", orderID),
			zap.Int64("notification_log_id", log.ID),
			zap.Error(recErr))
	}
	return outcome, err
}

func (c *Coordinator) settle(ctx context.Context, orderID, amount, path string) (*Outcome, error) {
	key := LockKey(orderID)
	handle, err := c.locker.TryAcquire(ctx, key, c.lockTTL)
	if err != nil {
		metrics.SettlementTotal.WithLabelValues(path, models.LogStatusException).Inc()
		logger.Logger.Error("获取结算锁失败",
			zap.String("order_id", orderID),
			zap.String("path", path),
			zap.Error(err))
		return &Outcome{
			LogStatus: models.LogStatusException,
			Message:   utils.Truncate("settlement lock unavailable: "+err.Error(), models.MaxMessageLength),
		}, fmt.Errorf("获取结算锁失败: %w", err)
	}

	if handle == nil {
		metrics.SettlementLockContendedTotal.WithLabelValues(path).Inc()
		metrics.SettlementTotal.WithLabelValues(path, models.LogStatusSuccess).Inc()
		logger.Logger.Info("结算锁已被占用，跳过入账",
			zap.String("order_id", orderID),
			zap.String("path", path))
		return &Outcome{
			LogStatus: models.LogStatusSuccess,
			Message:   "settlement already handled by another delivery",
			Contended: true,
		}, nil
	}

	result, err := c.payer.Paid(ctx, orderID, amount)
	if err != nil {
		if relErr := c.locker.Release(ctx, handle); relErr != nil {
			logger.Logger.Warn("释放结算锁失败",
				zap.String("order_id", orderID),
				zap.Error(relErr))
		}
		metrics.SettlementTotal.WithLabelValues(path, models.LogStatusException).Inc()
		logger.Logger.Error("结算失败",
			zap.String("order_id", orderID),
			zap.String("path", path),
			zap.String("amount", amount),
			zap.Error(err))
		return &Outcome{
			LogStatus: models.LogStatusException,
			Message:   utils.Truncate(err.Error(), models.MaxMessageLength),
		}, err
	}

	outcome := &Outcome{OrderStatus: result.Status, Message: result.Message}
	switch result.Status {
	case models.PaymentOrderStatusPaid:
		outcome.LogStatus = models.LogStatusSuccess
	case models.PaymentOrderStatusFail:
		outcome.LogStatus = models.LogStatusFail
	default:
		outcome.LogStatus = models.LogStatusException
	}

	metrics.SettlementTotal.WithLabelValues(path, outcome.LogStatus).Inc()
	logger.Logger.Info("结算完成",
		zap.String("order_id", orderID),
		zap.String("path", path),
		zap.String("amount", amount),
		zap.String("status", result.Status),
		zap.Error(result.Cause))
	return outcome, nil
}

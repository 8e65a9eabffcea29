package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-pay-settlement/internal/lock"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/metrics"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/order"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepLockKey 多副本部署时只允许一个实例执行超时关单
const sweepLockKey = "settlement:expiry:sweep"

// PendingLister 查询超时未支付的支付单
type PendingLister interface {
	ListPendingBefore(ctx context.Context, before time.Time, after *repository.PendingCursor, limit int) ([]models.PaymentOrder, error)
}

// SweepLocker 超时关单互斥锁
type SweepLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*lock.Handle, error)
	Release(ctx context.Context, h *lock.Handle) error
}

// ExpiryOptions 超时关单配置
type ExpiryOptions struct {
	PendingTTL time.Duration
	BatchSize  int
	LockTTL    time.Duration
}

// SweepResult 一次超时关单的统计
type SweepResult struct {
	Expired int `json:"expired"`
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExpiryService 超时关单服务
// 扫描超过有效期仍未支付的支付单：先查单，已支付则结算，否则关闭网关支付意图后置为超时
type ExpiryService struct {
	orders  PendingLister
	machine *order.Machine
	gateway PaymentGateway
	settler PollSettler
	locker  SweepLocker
	opts    ExpiryOptions
	now     func() time.Time
}

// NewExpiryService 创建超时关单服务
func NewExpiryService(orders PendingLister, machine *order.Machine, gw PaymentGateway, settler PollSettler, locker SweepLocker, opts ExpiryOptions) *ExpiryService {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 2 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &ExpiryService{
		orders:  orders,
		machine: machine,
		gateway: gw,
		settler: settler,
		locker:  locker,
		opts:    opts,
		now:     time.Now,
	}
}

// Schedule 按 cron 表达式（秒级）定时执行超时关单，返回已启动的调度器
func (s *ExpiryService) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.LockTTL)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			logger.Logger.Error("超时关单执行失败", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("添加超时关单任务失败: %w", err)
	}
	c.Start()
	logger.Logger.Info("超时关单任务已启动",
		zap.String("cron", spec),
		zap.Duration("pending_ttl", s.opts.PendingTTL))
	return c, nil
}

// Sweep 执行一轮超时关单
func (s *ExpiryService) Sweep(ctx context.Context) (result *SweepResult, err error) {
	result = &SweepResult{}
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("超时关单异常", zap.Any("panic", r))
			err = fmt.Errorf("超时关单异常: %v", r)
		}
	}()

	handle, err := s.locker.TryAcquire(ctx, sweepLockKey, s.opts.LockTTL)
	if err != nil {
		return result, err
	}
	if handle == nil {
		logger.Logger.Debug("其他实例正在执行超时关单，跳过")
		return result, nil
	}
	defer func() {
		if relErr := s.locker.Release(context.Background(), handle); relErr != nil {
			logger.Logger.Warn("释放超时关单锁失败", zap.Error(relErr))
		}
	}()

	// 逐页推进游标，失败的支付单不会挡住后面的支付单
	before := s.now().Add(-s.opts.PendingTTL)
	var cursor *repository.PendingCursor
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		orders, err := s.orders.ListPendingBefore(ctx, before, cursor, s.opts.BatchSize)
		if err != nil {
			return result, err
		}
		for i := range orders {
			outcome := s.expireOne(ctx, &orders[i])
			metrics.ExpirySweepTotal.WithLabelValues(outcome).Inc()
			switch outcome {
			case "expired":
				result.Expired++
			case "settled":
				result.Settled++
			case "skipped":
				result.Skipped++
			default:
				result.Failed++
			}
		}
		total += len(orders)
		if len(orders) < s.opts.BatchSize {
			break
		}
		cursor = repository.CursorOf(&orders[len(orders)-1])
	}

	if total > 0 {
		logger.Logger.Info("超时关单完成",
			zap.Int("total", total),
			zap.Int("expired", result.Expired),
			zap.Int("settled", result.Settled),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *ExpiryService) expireOne(ctx context.Context, o *models.PaymentOrder) string {
	log := logger.Logger.With(zap.String("order_id", o.ID), zap.String("payment", o.Payment))

	status, err := s.gateway.QueryStatus(ctx, o)
	if err != nil {
		log.Warn("超时关单查单失败", zap.Error(err))
		return "failed"
	}
	if status.Paid() {
		if _, err := s.settler.SettlePoll(ctx, o.ID, status); err != nil {
			log.Error("超时关单发现已支付，结算失败", zap.Error(err))
			return "failed"
		}
		log.Info("超时关单发现已支付，已结算")
		return "settled"
	}

	closed, err := s.gateway.CloseIntent(ctx, o)
	if err != nil {
		log.Warn("超时关单关闭支付意图失败", zap.Error(err))
		return "failed"
	}
	if !closed {
		log.Warn("网关未确认关单，下次重试")
		return "skipped"
	}

	if err := s.machine.Expire(ctx, o.ID); err != nil {
		if errors.Is(err, payerr.ErrInvalidState) || errors.Is(err, payerr.ErrStatusConflict) {
			// 关单期间状态已被其他流程修改
			log.Info("支付单状态已变更，跳过超时", zap.Error(err))
			return "skipped"
		}
		log.Error("支付单置为超时失败", zap.Error(err))
		return "failed"
	}
	return "expired"
}

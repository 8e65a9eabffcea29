package cmd

import (
	"fmt"
	"time"

	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/database"
	"github.com/golang-pay-settlement/internal/downstream"
	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/gateway/alipay"
	"github.com/golang-pay-settlement/internal/gateway/wechat"
	"github.com/golang-pay-settlement/internal/lock"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/mq"
	"github.com/golang-pay-settlement/internal/notify"
	"github.com/golang-pay-settlement/internal/order"
	"github.com/golang-pay-settlement/internal/repository"
	"github.com/golang-pay-settlement/internal/service"
	"github.com/golang-pay-settlement/internal/settlement"
	"go.uber.org/zap"
)

// app 运行期组件
type app struct {
	producer *mq.Producer
	payments *service.PaymentService
	expiry   *service.ExpiryService
	notify   *notify.Service
}

// openStores 初始化 MySQL 与 Redis，Redis 承载结算锁，两者均为必需
func openStores(cfg *config.Config) error {
	if err := database.InitMySQL(cfg.Database); err != nil {
		return err
	}
	if err := database.InitRedis(cfg.Redis); err != nil {
		_ = database.CloseMySQL()
		return err
	}
	return nil
}

func closeStores() {
	if err := database.CloseRedis(); err != nil {
		logger.Logger.Warn("关闭 Redis 失败", zap.Error(err))
	}
	if err := database.CloseMySQL(); err != nil {
		logger.Logger.Warn("关闭数据库失败", zap.Error(err))
	}
}

// newGatewayRegistry 按配置注册启用的支付网关
func newGatewayRegistry(cfg *config.Config) (*gateway.Registry, error) {
	registry := gateway.NewRegistry()

	if cfg.Wechat.Enabled {
		p, err := wechat.NewProvider(wechat.Options{
			MerchantID:         cfg.Wechat.MerchantID,
			MerchantCertSerial: cfg.Wechat.MerchantCertSerial,
			MerchantPrivateKey: cfg.Wechat.MerchantPrivateKey,
			PlatformPublicKey:  cfg.Wechat.PlatformPublicKey,
			APIv3Key:           cfg.Wechat.APIv3Key,
			AppID:              cfg.Wechat.AppID,
			NotifyURL:          cfg.Wechat.NotifyURL,
			BaseURL:            cfg.Wechat.BaseURL,
			Timeout:            cfg.Wechat.Timeout,
			VerifyResponse:     cfg.Wechat.VerifyResponse,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化微信支付失败: %w", err)
		}
		registry.Register(p)
	}

	if cfg.Alipay.Enabled {
		p, err := alipay.NewProvider(alipay.Options{
			AppID:           cfg.Alipay.AppID,
			PrivateKey:      cfg.Alipay.PrivateKey,
			AlipayPublicKey: cfg.Alipay.AlipayPublicKey,
			IsProduction:    cfg.Alipay.IsProduction,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化支付宝失败: %w", err)
		}
		registry.Register(p)
	}

	if len(registry.Methods()) == 0 {
		logger.Logger.Warn("未启用任何支付网关")
	}
	return registry, nil
}

// newDownstreamRegistry 每个配置的来源订单类型对应一个 HTTP 下游服务
func newDownstreamRegistry(cfg config.DownstreamConfig) *downstream.Registry {
	registry := downstream.NewRegistry()
	for sourceOrderType, svc := range cfg.Services {
		registry.Register(sourceOrderType, downstream.NewHTTPHandler(sourceOrderType, svc.BaseURL, svc.Token, cfg.Timeout))
	}
	logger.Logger.Info("下游订单服务已注册", zap.Strings("source_order_types", registry.Types()))
	return registry
}

// buildApp 组装结算服务，调用方需先 openStores
func buildApp(cfg *config.Config) (*app, error) {
	gateways, err := newGatewayRegistry(cfg)
	if err != nil {
		return nil, err
	}

	orders := repository.NewPaymentOrderRepository(database.DB)
	callLogs := repository.NewGatewayCallLogRepository(database.DB)
	notificationLogs := repository.NewNotificationLogRepository(database.DB)
	locker := lock.NewRedisLocker(database.RDB)

	client := gateway.NewClient(gateways, callLogs)
	producer := mq.NewProducer(cfg.RocketMQ)
	machine := order.NewMachine(orders, newDownstreamRegistry(cfg.Downstream), client, producer)
	coordinator := settlement.NewCoordinator(machine, locker, client, notificationLogs, cfg.Settlement.LockTTL)

	return &app{
		producer: producer,
		payments: service.NewPaymentService(machine, client, coordinator),
		expiry: service.NewExpiryService(orders, machine, client, coordinator, locker, service.ExpiryOptions{
			PendingTTL: cfg.Expiry.PendingTTL,
			BatchSize:  cfg.Expiry.BatchSize,
		}),
		notify: notify.NewService(gateways, notify.NewVerifier(cfg.Settlement.NotifyTimeWindow), notificationLogs, orders, coordinator),
	}, nil
}

func (a *app) close() {
	if err := a.producer.Close(); err != nil {
		logger.Logger.Error("关闭 RocketMQ 生产者失败", zap.Error(err))
	}
}

// shutdownTimeout 优雅关闭等待时间
const shutdownTimeout = 5 * time.Second

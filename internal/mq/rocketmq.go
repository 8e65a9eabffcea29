package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	rocketmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/models"
	"go.uber.org/zap"
)

func init() {
	// SDK 默认会写本地日志文件，改为控制台输出
	os.Setenv("mq.consoleAppender.enabled", "true")
	if os.Getenv("rocketmq.client.logLevel") == "" {
		os.Setenv("rocketmq.client.logLevel", "WARN")
	}
	rocketmq.ResetLogger()
}

// sender 发送消息的最小接口，rocketmq.Producer 实现该接口
type sender interface {
	Send(ctx context.Context, msg *rocketmq.Message) ([]*rocketmq.SendReceipt, error)
}

// Producer 支付单状态事件生产者
// 未启用或启动失败时为禁用状态，发布操作直接跳过
type Producer struct {
	producer rocketmq.Producer
	sender   sender
	topic    string
	enabled  bool
	now      func() time.Time
}

// NewProducer 创建并启动 RocketMQ 生产者
// 启动失败不返回错误，降级为禁用状态，状态事件不影响结算主流程
func NewProducer(cfg config.RocketMQConfig) *Producer {
	p := &Producer{topic: cfg.Topic, now: time.Now}
	if !cfg.Enabled {
		logger.Logger.Info("RocketMQ 未启用，不发布支付单状态事件")
		return p
	}

	if cfg.LogLevel != "" {
		os.Setenv("rocketmq.client.logLevel", cfg.LogLevel)
		rocketmq.ResetLogger()
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.Endpoint, cfg.Port)
	// SDK 要求 Credentials 不能为 nil，未配置 ACL 时使用空字符串
	producer, err := rocketmq.NewProducer(&rocketmq.Config{
		Endpoint: endpoint,
		Credentials: &credentials.SessionCredentials{
			AccessKey:    cfg.AccessKey,
			AccessSecret: cfg.AccessSecret,
		},
	}, rocketmq.WithTopics(cfg.Topic))
	if err != nil {
		logger.Logger.Warn("创建 RocketMQ 生产者失败，不发布支付单状态事件",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return p
	}

	if err := startWithTimeout(producer, 10*time.Second); err != nil {
		logger.Logger.Warn("启动 RocketMQ 生产者失败，不发布支付单状态事件",
			zap.String("endpoint", endpoint),
			zap.String("producer_group", cfg.ProducerGroup),
			zap.String("topic", cfg.Topic),
			zap.Error(err))
		_ = producer.GracefulStop()
		return p
	}

	logger.Logger.Info("RocketMQ 生产者启动成功",
		zap.String("endpoint", endpoint),
		zap.String("producer_group", cfg.ProducerGroup),
		zap.String("topic", cfg.Topic))

	p.producer = producer
	p.sender = producer
	p.enabled = true
	return p
}

func startWithTimeout(producer rocketmq.Producer, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- producer.Start()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("启动 RocketMQ 生产者超时: %w", ctx.Err())
	}
}

// IsEnabled 是否启用
func (p *Producer) IsEnabled() bool {
	return p.enabled
}

// PublishStatusChanged 发布支付单状态变更事件，tag 为新状态
// 发布失败只记录日志
func (p *Producer) PublishStatusChanged(ctx context.Context, order *models.PaymentOrder, from string) {
	if !p.enabled {
		return
	}

	msg := NewPaymentOrderStatusMessage(order, from, p.now())
	if err := p.send(ctx, order.Status, order.ID, msg); err != nil {
		logger.Logger.Error("发布支付单状态事件失败",
			zap.String("order_id", order.ID),
			zap.String("status", order.Status),
			zap.Error(err))
	}
}

func (p *Producer) send(ctx context.Context, tag, key string, body interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	message := &rocketmq.Message{
		Topic: p.topic,
		Body:  bodyBytes,
	}
	message.SetTag(tag)
	message.SetKeys(key)

	if _, err := p.sender.Send(ctx, message); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if !p.enabled || p.producer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.producer.GracefulStop()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("关闭 RocketMQ 生产者失败: %w", err)
		}
	case <-ctx.Done():
		logger.Logger.Warn("关闭 RocketMQ 生产者超时，强制退出", zap.Error(ctx.Err()))
		return nil
	}

	logger.Logger.Info("RocketMQ 生产者已关闭")
	return nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 支付结算相关指标

var (
	// GatewayCallTotal 支付网关调用次数
	GatewayCallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_call_total",
		Help: "支付网关调用总次数",
	}, []string{"payment", "action", "status"})

	// GatewayCallDuration 支付网关调用耗时
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_call_duration_seconds",
		Help:    "支付网关调用耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"payment", "action"})

	// SettlementTotal 结算次数，path 为 poll 或 notify
	SettlementTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_total",
		Help: "结算处理总次数",
	}, []string{"path", "outcome"})

	// SettlementLockContendedTotal 结算锁已被占用而跳过入账的次数
	SettlementLockContendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_lock_contended_total",
		Help: "结算锁已被占用的次数",
	}, []string{"path"})

	// NotificationTotal 支付回调处理次数
	NotificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notification_total",
		Help: "支付回调处理总次数",
	}, []string{"payment", "status"})

	// OrderTransitionTotal 支付单状态流转次数
	OrderTransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_order_transition_total",
		Help: "支付单状态流转总次数",
	}, []string{"from", "to"})

	// ExpirySweepTotal 超时关单处理次数
	ExpirySweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_expiry_sweep_total",
		Help: "超时关单处理总次数",
	}, []string{"result"})
)

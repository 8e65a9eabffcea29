package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOrder 支付单模型，一次支付尝试对应一条记录
type PaymentOrder struct {
	ID              string          `gorm:"primaryKey;type:varchar(36);comment:支付单ID" json:"id"`
	StoreID         string          `gorm:"index;type:varchar(36);not null;comment:店铺ID" json:"store_id"`
	SourceOrderType string          `gorm:"index:idx_payment_order_source;type:varchar(32);not null;comment:来源订单类型" json:"source_order_type"`
	SourceOrderID   string          `gorm:"index:idx_payment_order_source;type:varchar(64);not null;comment:来源订单ID" json:"source_order_id"`
	Name            string          `gorm:"type:varchar(255);not null;default:'';comment:名称" json:"name"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null;comment:金额" json:"amount"`
	Payment         string          `gorm:"type:varchar(16);not null;comment:支付方式" json:"payment"`
	Status          string          `gorm:"index;type:varchar(16);not null;comment:状态" json:"status"`
	Message         string          `gorm:"type:varchar(500);not null;default:'';comment:状态说明" json:"message"`
	CreateDatetime  time.Time       `gorm:"index;comment:创建时间" json:"create_datetime"`
	UpdateDatetime  time.Time       `gorm:"comment:修改时间" json:"update_datetime"`
}

// TableName 指定表名
func (PaymentOrder) TableName() string {
	return "payment_order"
}

// AmountString 两位小数的金额字符串，用于金额比对
func (o *PaymentOrder) AmountString() string {
	return o.Amount.StringFixed(2)
}

// PaymentOrderStatus 支付单状态常量
const (
	PaymentOrderStatusPending   = "pending"   // 待付款
	PaymentOrderStatusPaid      = "paid"      // 已付款
	PaymentOrderStatusFail      = "fail"      // 付款失败
	PaymentOrderStatusException = "exception" // 付款成功，但有异常
	PaymentOrderStatusExpired   = "expired"   // 超时
	PaymentOrderStatusCancelled = "cancelled" // 已取消
)

// PaymentOrderStatusLabels 状态键值对（有序）
var PaymentOrderStatusLabels = []StatusLabel{
	{Key: PaymentOrderStatusPending, Label: "待付款"},
	{Key: PaymentOrderStatusPaid, Label: "已付款"},
	{Key: PaymentOrderStatusFail, Label: "付款失败"},
	{Key: PaymentOrderStatusException, Label: "付款成功，但有异常"},
	{Key: PaymentOrderStatusExpired, Label: "超时"},
	{Key: PaymentOrderStatusCancelled, Label: "已取消"},
}

// StatusLabel 状态及其展示名称
type StatusLabel struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// IsPaymentOrderStatus 是否为合法的支付单状态
func IsPaymentOrderStatus(status string) bool {
	for _, l := range PaymentOrderStatusLabels {
		if l.Key == status {
			return true
		}
	}
	return false
}

// 来源订单类型
const (
	SourceOrderTypeSubscription = "subscription" // 套餐订单
	SourceOrderTypeCommission   = "commission"   // 佣金订单
)

// 支付方式
const (
	PaymentMethodWechat = "wechat"
	PaymentMethodAlipay = "alipay"
)

package models

import "time"

// GatewayCallLog 支付网关调用日志，每次对外调用（下单、关单、查单）一条
type GatewayCallLog struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID        string    `gorm:"index;type:varchar(36);not null;default:'';comment:店铺ID" json:"store_id"`
	PaymentOrderID string    `gorm:"index;type:varchar(36);not null;comment:支付单ID" json:"payment_order_id"`
	Payment        string    `gorm:"type:varchar(16);not null;comment:支付方式" json:"payment"`
	Action         string    `gorm:"type:varchar(16);not null;comment:调用类型" json:"action"`
	RequestURL     string    `gorm:"type:varchar(500);comment:请求地址" json:"request_url"`
	RequestData    string    `gorm:"type:longtext;comment:请求参数" json:"request_data,omitempty"`
	ResponseData   string    `gorm:"type:longtext;comment:返回信息" json:"response_data,omitempty"`
	Status         string    `gorm:"index;type:varchar(16);not null;comment:结果状态" json:"status"`
	Message        string    `gorm:"type:varchar(500);not null;default:'';comment:说明" json:"message"`
	CreateDatetime time.Time `gorm:"comment:创建时间" json:"create_datetime"`
	UpdateDatetime time.Time `gorm:"comment:修改时间" json:"update_datetime"`
}

// TableName 指定表名
func (GatewayCallLog) TableName() string {
	return "payment_gateway_call_log"
}

// 网关调用类型
const (
	GatewayActionCreate = "create"
	GatewayActionClose  = "close"
	GatewayActionQuery  = "query"
)

// 日志结果状态，网关调用日志与回调日志共用
const (
	LogStatusUnknown   = "unknown"
	LogStatusSuccess   = "success"
	LogStatusFail      = "fail"
	LogStatusException = "exception"
)

// MaxMessageLength 日志与状态说明的最大字符数
const MaxMessageLength = 200

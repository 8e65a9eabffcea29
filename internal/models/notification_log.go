package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationLog 支付网关回调日志，每次回调一条，收到即写入 unknown，处理完成后原地更新
type NotificationLog struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StoreID        string         `gorm:"index;type:varchar(36);not null;default:'';comment:店铺ID" json:"store_id"`
	PaymentOrderID string         `gorm:"index;type:varchar(36);not null;default:'';comment:支付单ID" json:"payment_order_id"`
	Payment        string         `gorm:"type:varchar(16);not null;comment:支付方式" json:"payment"`
	Header         datatypes.JSON `gorm:"comment:请求头" json:"header"`
	Body           string         `gorm:"type:longtext;comment:请求体" json:"body"`
	Data           datatypes.JSON `gorm:"comment:解密后数据" json:"data,omitempty"`
	Status         string         `gorm:"index;type:varchar(16);not null;comment:处理状态" json:"status"`
	Message        string         `gorm:"type:varchar(500);not null;default:'';comment:说明" json:"message"`
	CreateDatetime time.Time      `gorm:"comment:创建时间" json:"create_datetime"`
	UpdateDatetime time.Time      `gorm:"comment:修改时间" json:"update_datetime"`
}

// TableName 指定表名
func (NotificationLog) TableName() string {
	return "payment_notification_log"
}

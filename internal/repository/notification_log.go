package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/utils"
	"gorm.io/gorm"
)

// NotificationLogRepository 回调日志存储
type NotificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository 创建回调日志存储
func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Create 收到回调时立即写入
func (r *NotificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	now := time.Now()
	log.CreateDatetime = now
	log.UpdateDatetime = now
	if log.Status == "" {
		log.Status = models.LogStatusUnknown
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("写入回调日志失败: %w", err)
	}
	return nil
}

// Update 原地更新回调日志的处理结果
func (r *NotificationLogRepository) Update(ctx context.Context, log *models.NotificationLog) error {
	log.UpdateDatetime = time.Now()
	log.Message = utils.Truncate(log.Message, models.MaxMessageLength)
	if err := r.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("id = ?", log.ID).
		Updates(map[string]interface{}{
			"store_id":         log.StoreID,
			"payment_order_id": log.PaymentOrderID,
			"data":             log.Data,
			"status":           log.Status,
			"message":          log.Message,
			"update_datetime":  log.UpdateDatetime,
		}).Error; err != nil {
		return fmt.Errorf("更新回调日志失败: %w", err)
	}
	return nil
}

// Get 按ID查询回调日志
func (r *NotificationLogRepository) Get(ctx context.Context, id int64) (*models.NotificationLog, error) {
	var log models.NotificationLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error; err != nil {
		return nil, fmt.Errorf("查询回调日志失败: %w", err)
	}
	return &log, nil
}

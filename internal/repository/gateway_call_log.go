package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/utils"
	"gorm.io/gorm"
)

// GatewayCallLogRepository 网关调用日志存储
type GatewayCallLogRepository struct {
	db *gorm.DB
}

// NewGatewayCallLogRepository 创建网关调用日志存储
func NewGatewayCallLogRepository(db *gorm.DB) *GatewayCallLogRepository {
	return &GatewayCallLogRepository{db: db}
}

// Create 写入调用日志
func (r *GatewayCallLogRepository) Create(ctx context.Context, log *models.GatewayCallLog) error {
	now := time.Now()
	log.CreateDatetime = now
	log.UpdateDatetime = now
	log.Message = utils.Truncate(log.Message, models.MaxMessageLength)
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("写入网关调用日志失败: %w", err)
	}
	return nil
}

// UpdateOutcome 更新调用日志的结果（查单触发结算后回写）
func (r *GatewayCallLogRepository) UpdateOutcome(ctx context.Context, id int64, status, message string) error {
	if err := r.db.WithContext(ctx).Model(&models.GatewayCallLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"message":         utils.Truncate(message, models.MaxMessageLength),
			"update_datetime": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("更新网关调用日志失败: %w", err)
	}
	return nil
}

// ListByOrder 查询支付单的全部调用日志
func (r *GatewayCallLogRepository) ListByOrder(ctx context.Context, paymentOrderID string) ([]models.GatewayCallLog, error) {
	var logs []models.GatewayCallLog
	if err := r.db.WithContext(ctx).
		Where("payment_order_id = ?", paymentOrderID).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询网关调用日志失败: %w", err)
	}
	return logs, nil
}

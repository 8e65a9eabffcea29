package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"gorm.io/gorm"
)

// ErrStatusConflict 状态已被并发修改，本次写入被拒绝
var ErrStatusConflict = payerr.New(payerr.ErrStatusConflict, "payment order status changed concurrently")

// PaymentOrderRepository 支付单存储
type PaymentOrderRepository struct {
	db *gorm.DB
}

// NewPaymentOrderRepository 创建支付单存储
func NewPaymentOrderRepository(db *gorm.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// Get 按ID加载支付单快照
func (r *PaymentOrderRepository) Get(ctx context.Context, id string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payerr.Newf(payerr.ErrNotFound, "payment order %s not found", id)
		}
		return nil, fmt.Errorf("查询支付单失败: %w", err)
	}
	return &order, nil
}

// Create 写入新支付单
func (r *PaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	now := time.Now()
	order.CreateDatetime = now
	order.UpdateDatetime = now
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("创建支付单失败: %w", err)
	}
	return nil
}

// UpdateStatus 以加载时的状态为条件更新状态（乐观并发控制）
// 当前状态已不是 from 时返回 ErrStatusConflict，不做任何修改
func (r *PaymentOrderRepository) UpdateStatus(ctx context.Context, id, from, to, message string) error {
	result := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":          to,
			"message":         message,
			"update_datetime": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("更新支付单状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Exists 店铺下是否存在指定来源类型、指定状态的支付单
func (r *PaymentOrderRepository) Exists(ctx context.Context, storeID, sourceOrderType, status string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("store_id = ? AND source_order_type = ? AND status = ?", storeID, sourceOrderType, status).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("统计支付单失败: %w", err)
	}
	return count > 0, nil
}

// PendingCursor 待付款支付单分页游标，按 (create_datetime, id) 递增
type PendingCursor struct {
	CreateDatetime time.Time
	ID             string
}

// CursorOf 以支付单位置作为下一页的起点
func CursorOf(o *models.PaymentOrder) *PendingCursor {
	return &PendingCursor{CreateDatetime: o.CreateDatetime, ID: o.ID}
}

// ListPendingBefore 查询创建时间早于 before 的待付款支付单，after 为空时从最早的开始
func (r *PaymentOrderRepository) ListPendingBefore(ctx context.Context, before time.Time, after *PendingCursor, limit int) ([]models.PaymentOrder, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND create_datetime < ?", models.PaymentOrderStatusPending, before)
	if after != nil {
		query = query.Where("create_datetime > ? OR (create_datetime = ? AND id > ?)",
			after.CreateDatetime, after.CreateDatetime, after.ID)
	}

	var orders []models.PaymentOrder
	if err := query.
		Order("create_datetime ASC, id ASC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("查询待付款支付单失败: %w", err)
	}
	return orders, nil
}

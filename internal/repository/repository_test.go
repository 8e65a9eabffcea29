package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-pay-settlement/internal/database"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newOrder(status string) *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:              uuid.NewString(),
		StoreID:         "store-1",
		SourceOrderType: models.SourceOrderTypeSubscription,
		SourceOrderID:   "sub-1",
		Name:            "Pro plan 12 months",
		Amount:          decimal.RequireFromString("60.00"),
		Payment:         models.PaymentMethodWechat,
		Status:          status,
	}
}

func TestPaymentOrderRepository_CreateAndGet(t *testing.T) {
	repo := NewPaymentOrderRepository(setupTestDB(t))
	ctx := context.Background()

	order := newOrder(models.PaymentOrderStatusPending)
	require.NoError(t, repo.Create(ctx, order))

	loaded, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00", loaded.AmountString())
	assert.Equal(t, models.PaymentOrderStatusPending, loaded.Status)
	assert.False(t, loaded.CreateDatetime.IsZero())
}

func TestPaymentOrderRepository_GetNotFound(t *testing.T) {
	repo := NewPaymentOrderRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, payerr.ErrNotFound))
}

func TestPaymentOrderRepository_UpdateStatusOptimistic(t *testing.T) {
	repo := NewPaymentOrderRepository(setupTestDB(t))
	ctx := context.Background()

	order := newOrder(models.PaymentOrderStatusPending)
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, models.PaymentOrderStatusPending, models.PaymentOrderStatusPaid, "paid"))

	// 以过期的状态快照写入，必须被拒绝
	err := repo.UpdateStatus(ctx, order.ID, models.PaymentOrderStatusPending, models.PaymentOrderStatusCancelled, "")
	assert.True(t, errors.Is(err, ErrStatusConflict))
	assert.False(t, errors.Is(err, payerr.ErrInvalidState))

	loaded, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentOrderStatusPaid, loaded.Status)
	assert.Equal(t, "paid", loaded.Message)
}

func TestPaymentOrderRepository_Exists(t *testing.T) {
	repo := NewPaymentOrderRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newOrder(models.PaymentOrderStatusPending)))

	ok, err := repo.Exists(ctx, "store-1", models.SourceOrderTypeSubscription, models.PaymentOrderStatusPending)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "store-1", models.SourceOrderTypeCommission, models.PaymentOrderStatusPending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentOrderRepository_ListPendingBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentOrderRepository(db)
	ctx := context.Background()

	old := newOrder(models.PaymentOrderStatusPending)
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, db.Model(&models.PaymentOrder{}).Where("id = ?", old.ID).
		Update("create_datetime", time.Now().Add(-3*time.Hour)).Error)

	require.NoError(t, repo.Create(ctx, newOrder(models.PaymentOrderStatusPending)))
	paid := newOrder(models.PaymentOrderStatusPaid)
	require.NoError(t, repo.Create(ctx, paid))

	orders, err := repo.ListPendingBefore(ctx, time.Now().Add(-2*time.Hour), nil, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, old.ID, orders[0].ID)
}

func TestPaymentOrderRepository_ListPendingBeforeCursor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentOrderRepository(db)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		o := newOrder(models.PaymentOrderStatusPending)
		require.NoError(t, repo.Create(ctx, o))
		require.NoError(t, db.Model(&models.PaymentOrder{}).Where("id = ?", o.ID).
			Update("create_datetime", time.Now().Add(-time.Duration(5-i)*time.Hour)).Error)
		ids = append(ids, o.ID)
	}
	before := time.Now().Add(-time.Hour)

	var seen []string
	var cursor *PendingCursor
	for {
		page, err := repo.ListPendingBefore(ctx, before, cursor, 2)
		require.NoError(t, err)
		for i := range page {
			seen = append(seen, page[i].ID)
		}
		if len(page) < 2 {
			break
		}
		cursor = CursorOf(&page[len(page)-1])
	}
	assert.Equal(t, ids, seen)
}

func TestGatewayCallLogRepository_TruncatesMessage(t *testing.T) {
	repo := NewGatewayCallLogRepository(setupTestDB(t))
	ctx := context.Background()

	log := &models.GatewayCallLog{
		PaymentOrderID: "order-1",
		Payment:        models.PaymentMethodWechat,
		Action:         models.GatewayActionQuery,
		Status:         models.LogStatusFail,
		Message:        strings.Repeat("x", 500),
	}
	require.NoError(t, repo.Create(ctx, log))
	require.NoError(t, repo.UpdateOutcome(ctx, log.ID, models.LogStatusException, strings.Repeat("y", 300)))

	logs, err := repo.ListByOrder(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogStatusException, logs[0].Status)
	assert.Len(t, logs[0].Message, models.MaxMessageLength)
}

func TestNotificationLogRepository_CreateThenUpdate(t *testing.T) {
	repo := NewNotificationLogRepository(setupTestDB(t))
	ctx := context.Background()

	log := &models.NotificationLog{
		Payment: models.PaymentMethodWechat,
		Header:  datatypes.JSON(`{"wechatpay-nonce":"n"}`),
		Body:    `{"id":"evt"}`,
	}
	require.NoError(t, repo.Create(ctx, log))
	assert.Equal(t, models.LogStatusUnknown, log.Status)

	log.PaymentOrderID = "order-1"
	log.Status = models.LogStatusSuccess
	log.Message = "paid"
	log.Data = datatypes.JSON(`{"trade_state":"SUCCESS"}`)
	require.NoError(t, repo.Update(ctx, log))

	loaded, err := repo.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogStatusSuccess, loaded.Status)
	assert.Equal(t, "order-1", loaded.PaymentOrderID)
	assert.JSONEq(t, `{"trade_state":"SUCCESS"}`, string(loaded.Data))
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-pay-settlement/internal/database"
	"github.com/golang-pay-settlement/internal/downstream"
	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/lock"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/order"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countingDownstream struct {
	credits int32
}

func (d *countingDownstream) Resolve(context.Context, string, string) (*downstream.SourceOrder, error) {
	return &downstream.SourceOrder{Amount: decimal.RequireFromString("60"), Payment: models.PaymentMethodWechat, Name: "Pro plan"}, nil
}

func (d *countingDownstream) Credit(context.Context, string, string) error {
	atomic.AddInt32(&d.credits, 1)
	return nil
}

func (d *countingDownstream) Cancel(context.Context, string, string) error { return nil }

type noopCloser struct{}

func (noopCloser) CloseIntent(context.Context, *models.PaymentOrder) (bool, error) { return true, nil }

type callRecords struct {
	mu       sync.Mutex
	outcomes map[int64]string
}

func (r *callRecords) RecordOutcome(_ context.Context, id int64, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[id] = status
	return nil
}

type fixture struct {
	coordinator   *Coordinator
	machine       *order.Machine
	downstream    *countingDownstream
	calls         *callRecords
	notifications *repository.NotificationLogRepository
	redis         *miniredis.Miniredis
}

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := setupTestDB(t)
	ds := &countingDownstream{}
	machine := order.NewMachine(repository.NewPaymentOrderRepository(db), ds, noopCloser{}, nil)
	calls := &callRecords{outcomes: map[int64]string{}}
	notifications := repository.NewNotificationLogRepository(db)

	return &fixture{
		coordinator:   NewCoordinator(machine, lock.NewRedisLocker(rdb), calls, notifications, 0),
		machine:       machine,
		downstream:    ds,
		calls:         calls,
		notifications: notifications,
		redis:         mr,
	}
}

func (f *fixture) createOrder(t *testing.T) *models.PaymentOrder {
	t.Helper()
	o, err := f.machine.Create(context.Background(), order.CreateRequest{
		StoreID:         "store-1",
		SourceOrderType: models.SourceOrderTypeSubscription,
		SourceOrderID:   "sub-1",
	})
	require.NoError(t, err)
	return o
}

func paidQuery(callLogID int64, amount string) *gateway.QueryResult {
	return &gateway.QueryResult{
		TradeStatus: gateway.TradeStatus{State: gateway.TradeStateSuccess, Amount: amount},
		CallLogID:   callLogID,
	}
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "settlement:paid:abc", LockKey("abc"))
}

func TestSettlePoll(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	outcome, err := f.coordinator.SettlePoll(context.Background(), o.ID, paidQuery(11, "60.00"))
	require.NoError(t, err)

	assert.True(t, outcome.Paid())
	assert.Equal(t, models.LogStatusSuccess, f.calls.outcomes[11])
	assert.Equal(t, int32(1), f.downstream.credits)

	// 锁保留至过期
	assert.True(t, f.redis.Exists(LockKey(o.ID)))
	assert.Equal(t, DefaultLockTTL, f.redis.TTL(LockKey(o.ID)))
}

func TestSettlePoll_AmountMismatchRecordsFail(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)

	outcome, err := f.coordinator.SettlePoll(context.Background(), o.ID, paidQuery(12, "0.01"))
	require.NoError(t, err)

	assert.False(t, outcome.Paid())
	assert.Equal(t, models.PaymentOrderStatusFail, outcome.OrderStatus)
	assert.Equal(t, models.LogStatusFail, f.calls.outcomes[12])
	assert.Equal(t, int32(0), f.downstream.credits)
}

func TestSettle_LockHeldSkipsCredit(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	require.NoError(t, f.redis.Set(LockKey(o.ID), "other"))

	outcome, err := f.coordinator.SettlePoll(context.Background(), o.ID, paidQuery(13, "60.00"))
	require.NoError(t, err)

	assert.True(t, outcome.Contended)
	assert.Equal(t, models.LogStatusSuccess, f.calls.outcomes[13])
	assert.Equal(t, int32(0), f.downstream.credits)
}

func TestSettle_ConcurrentDeliveriesCreditOnce(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	ctx := context.Background()

	const deliveries = 10
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.coordinator.SettlePoll(ctx, o.ID, paidQuery(int64(100+i), "60.00"))
				return
			}
			log := &models.NotificationLog{Payment: models.PaymentMethodWechat, Body: "{}"}
			if errs[i] = f.notifications.Create(ctx, log); errs[i] != nil {
				return
			}
			_, errs[i] = f.coordinator.SettleNotification(ctx, log, o.ID, "60.00")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.downstream.credits)

	loaded, err := f.machine.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentOrderStatusPaid, loaded.Status)
}

func TestSettleNotification_UpdatesLogInPlace(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	ctx := context.Background()

	log := &models.NotificationLog{Payment: models.PaymentMethodWechat, Body: "{}"}
	require.NoError(t, f.notifications.Create(ctx, log))
	log.PaymentOrderID = o.ID

	_, err := f.coordinator.SettleNotification(ctx, log, o.ID, "60.00")
	require.NoError(t, err)

	stored, err := f.notifications.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogStatusSuccess, stored.Status)
	assert.Equal(t, o.ID, stored.PaymentOrderID)
}

func TestSettle_UnknownOrderReleasesLock(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	outcome, err := f.coordinator.SettlePoll(context.Background(), id, paidQuery(14, "60.00"))
	assert.True(t, errors.Is(err, payerr.ErrNotFound))
	assert.Equal(t, models.LogStatusException, outcome.LogStatus)
	assert.Equal(t, models.LogStatusException, f.calls.outcomes[14])
	assert.False(t, f.redis.Exists(LockKey(id)))
}

func TestSettle_LockStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t)
	f.redis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := f.coordinator.SettlePoll(ctx, o.ID, paidQuery(15, "60.00"))

	assert.Error(t, err)
	assert.Equal(t, models.LogStatusException, outcome.LogStatus)
	assert.Equal(t, int32(0), f.downstream.credits)
}

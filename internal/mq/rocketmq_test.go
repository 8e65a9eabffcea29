package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	rocketmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	messages []*rocketmq.Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, msg *rocketmq.Message) ([]*rocketmq.SendReceipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.messages = append(s.messages, msg)
	return nil, nil
}

func testOrder() *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:              "0b6f9f0e-3c2a-4d5e-8f7a-6b5c4d3e2f1a",
		StoreID:         "store-1",
		SourceOrderType: models.SourceOrderTypeSubscription,
		SourceOrderID:   "sub-1",
		Amount:          decimal.RequireFromString("60"),
		Payment:         models.PaymentMethodWechat,
		Status:          models.PaymentOrderStatusPaid,
	}
}

func TestNewProducer_Disabled(t *testing.T) {
	p := NewProducer(config.RocketMQConfig{Enabled: false, Topic: "payment_order_status"})
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Close())

	// 禁用时发布不做任何事
	p.PublishStatusChanged(context.Background(), testOrder(), models.PaymentOrderStatusPending)
}

func TestPublishStatusChanged(t *testing.T) {
	s := &recordingSender{}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	p := &Producer{sender: s, topic: "payment_order_status", enabled: true, now: func() time.Time { return at }}

	p.PublishStatusChanged(context.Background(), testOrder(), models.PaymentOrderStatusPending)

	require.Len(t, s.messages, 1)
	msg := s.messages[0]
	assert.Equal(t, "payment_order_status", msg.Topic)
	require.NotNil(t, msg.GetTag())
	assert.Equal(t, models.PaymentOrderStatusPaid, *msg.GetTag())

	var body PaymentOrderStatusMessage
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "60.00", body.Amount)
	assert.Equal(t, models.PaymentOrderStatusPending, body.FromStatus)
	assert.Equal(t, models.PaymentOrderStatusPaid, body.Status)
	assert.Equal(t, "2024-05-01 12:00:00", body.OccurredAt)
}

func TestPublishStatusChanged_SendErrorIsSwallowed(t *testing.T) {
	p := &Producer{sender: &recordingSender{err: errors.New("broker down")}, topic: "t", enabled: true, now: time.Now}
	assert.NotPanics(t, func() {
		p.PublishStatusChanged(context.Background(), testOrder(), models.PaymentOrderStatusPending)
	})
}

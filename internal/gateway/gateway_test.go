package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	method    string
	intentErr error
	close     *CloseResult
	closeErr  error
	status    *TradeStatus
	statusErr error
}

func (f *fakeProvider) Method() string { return f.method }

func (f *fakeProvider) CreateIntent(_ context.Context, req IntentRequest, ex *Exchange) (*Intent, error) {
	ex.URL = "create"
	ex.Request = req.Reference
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	ex.Response = "ok"
	return &Intent{Reference: req.Reference, CodeURL: "weixin://" + req.Reference}, nil
}

func (f *fakeProvider) CloseIntent(_ context.Context, _ string, ex *Exchange) (*CloseResult, error) {
	ex.URL = "close"
	return f.close, f.closeErr
}

func (f *fakeProvider) QueryStatus(_ context.Context, _ string, ex *Exchange) (*TradeStatus, error) {
	ex.URL = "query"
	return f.status, f.statusErr
}

type fakeWebhookProvider struct {
	fakeProvider
}

func (f *fakeWebhookProvider) ExtractHeaders(h http.Header) WebhookHeaders { return WebhookHeaders{} }
func (f *fakeWebhookProvider) VerifySignature(string, []byte, string) error { return nil }
func (f *fakeWebhookProvider) DecryptResource(Resource) ([]byte, error)     { return nil, nil }

type memoryCallLogs struct {
	mu   sync.Mutex
	logs []*models.GatewayCallLog
}

func (m *memoryCallLogs) Create(_ context.Context, log *models.GatewayCallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryCallLogs) UpdateOutcome(_ context.Context, id int64, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.ID == id {
			l.Status = status
			l.Message = message
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memoryCallLogs) last() *models.GatewayCallLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[len(m.logs)-1]
}

func testOrder() *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:      "0b6f9f0e-3c2a-4d5e-8f7a-6b5c4d3e2f1a",
		StoreID: "store-7",
		Name:    "订阅",
		Amount:  decimal.RequireFromString("99.00"),
		Payment: models.PaymentMethodWechat,
	}
}

func newTestClient(p Provider) (*Client, *memoryCallLogs) {
	registry := NewRegistry()
	registry.Register(p)
	logs := &memoryCallLogs{}
	return NewClient(registry, logs), logs
}

func TestReference(t *testing.T) {
	id := "0b6f9f0e-3c2a-4d5e-8f7a-6b5c4d3e2f1a"
	ref := EncodeReference(id)
	assert.Equal(t, "0b6f9f0e3c2a4d5e8f7a6b5c4d3e2f1a", ref)
	assert.Len(t, ref, 32)

	decoded, err := DecodeReference(ref)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = DecodeReference("not-a-reference")
	assert.True(t, errors.Is(err, payerr.ErrNotFound))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeProvider{method: "wechat"})
	registry.Register(&fakeWebhookProvider{fakeProvider{method: "alipay"}})

	assert.Equal(t, []string{"alipay", "wechat"}, registry.Methods())

	_, err := registry.Get("paypal")
	assert.True(t, errors.Is(err, payerr.ErrUnsupportedPayment))

	_, err = registry.Webhook("wechat")
	assert.True(t, errors.Is(err, payerr.ErrUnsupportedPayment))

	wp, err := registry.Webhook("alipay")
	require.NoError(t, err)
	assert.Equal(t, "alipay", wp.Method())
}

func TestJoinedByLineFeed(t *testing.T) {
	assert.Equal(t, "a\nb\n\n", string(JoinedByLineFeed("a", "b", "")))
}

func TestClient_CreateIntent(t *testing.T) {
	client, logs := newTestClient(&fakeProvider{method: models.PaymentMethodWechat})

	intent, err := client.CreateIntent(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "weixin://0b6f9f0e3c2a4d5e8f7a6b5c4d3e2f1a", intent.CodeURL)

	log := logs.last()
	assert.Equal(t, models.GatewayActionCreate, log.Action)
	assert.Equal(t, models.LogStatusSuccess, log.Status)
	assert.Equal(t, "store-7", log.StoreID)
	assert.Equal(t, "create", log.RequestURL)
}

func TestClient_CreateIntentFailure(t *testing.T) {
	client, logs := newTestClient(&fakeProvider{method: models.PaymentMethodWechat, intentErr: errors.New("connection reset")})

	_, err := client.CreateIntent(context.Background(), testOrder())
	assert.True(t, errors.Is(err, payerr.ErrGatewayError))
	assert.Equal(t, models.LogStatusFail, logs.last().Status)
	assert.Equal(t, "connection reset", logs.last().Message)
}

func TestClient_UnsupportedPayment(t *testing.T) {
	client, logs := newTestClient(&fakeProvider{method: models.PaymentMethodWechat})
	order := testOrder()
	order.Payment = "paypal"

	_, err := client.CreateIntent(context.Background(), order)
	assert.True(t, errors.Is(err, payerr.ErrUnsupportedPayment))
	assert.Empty(t, logs.logs)
}

func TestClient_CloseIntent(t *testing.T) {
	tests := []struct {
		name       string
		result     *CloseResult
		err        error
		wantClosed bool
		wantStatus string
		wantErr    bool
	}{
		{name: "closed", result: &CloseResult{Closed: true}, wantClosed: true, wantStatus: models.LogStatusSuccess},
		{name: "already finalized", result: &CloseResult{AlreadyFinalized: true}, wantClosed: true, wantStatus: models.LogStatusSuccess},
		{name: "not confirmed", result: &CloseResult{Message: "close failed: HTTP 202"}, wantStatus: models.LogStatusFail},
		{name: "transport error", err: errors.New("timeout"), wantStatus: models.LogStatusFail, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, logs := newTestClient(&fakeProvider{method: models.PaymentMethodWechat, close: tt.result, closeErr: tt.err})

			closed, err := client.CloseIntent(context.Background(), testOrder())
			if tt.wantErr {
				assert.True(t, errors.Is(err, payerr.ErrGatewayError))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantClosed, closed)
			assert.Equal(t, tt.wantStatus, logs.last().Status)
			assert.Equal(t, models.GatewayActionClose, logs.last().Action)
		})
	}
}

func TestClient_QueryStatusAndRecordOutcome(t *testing.T) {
	client, logs := newTestClient(&fakeProvider{
		method: models.PaymentMethodWechat,
		status: &TradeStatus{State: TradeStateSuccess, Amount: "99.00"},
	})

	result, err := client.QueryStatus(context.Background(), testOrder())
	require.NoError(t, err)
	assert.True(t, result.Paid())
	assert.Equal(t, models.LogStatusSuccess, logs.last().Status)

	require.NoError(t, client.RecordOutcome(context.Background(), result.CallLogID, models.LogStatusException, "credit failed"))
	assert.Equal(t, models.LogStatusException, logs.last().Status)
	assert.Equal(t, "credit failed", logs.last().Message)

	assert.NoError(t, client.RecordOutcome(context.Background(), 0, models.LogStatusSuccess, ""))
}

func TestClient_QueryStatusNotPaid(t *testing.T) {
	client, logs := newTestClient(&fakeProvider{
		method: models.PaymentMethodWechat,
		status: &TradeStatus{State: "NOTPAY", Description: "订单未支付"},
	})

	result, err := client.QueryStatus(context.Background(), testOrder())
	require.NoError(t, err)
	assert.False(t, result.Paid())
	assert.Equal(t, models.LogStatusFail, logs.last().Status)
	assert.Equal(t, "订单未支付", logs.last().Message)
}

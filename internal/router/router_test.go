package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPayments struct{ storeID string }

func (s *stubPayments) Create(context.Context, string, string, string) (*models.PaymentOrder, error) {
	return nil, payerr.New(payerr.ErrUnsupportedType, "unsupported")
}

func (s *stubPayments) Get(_ context.Context, storeID, id string) (*models.PaymentOrder, error) {
	s.storeID = storeID
	return &models.PaymentOrder{ID: id, StoreID: storeID}, nil
}

func (s *stubPayments) Has(context.Context, string, string, string) (bool, error) { return false, nil }

func (s *stubPayments) Pay(context.Context, string, string) (*service.PayResult, error) {
	return &service.PayResult{}, nil
}

func (s *stubPayments) Check(context.Context, string, string) (*service.CheckResult, error) {
	return &service.CheckResult{}, nil
}

func (s *stubPayments) Cancel(context.Context, string, string) (bool, error) { return true, nil }

func (s *stubPayments) Methods() []string { return []string{models.PaymentMethodWechat} }

func (s *stubPayments) Statuses() []models.StatusLabel { return models.PaymentOrderStatusLabels }

type stubNotify struct{ calls int }

func (s *stubNotify) Handle(context.Context, string, http.Header, []byte) error {
	s.calls++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Name: "golang-pay-settlement", Mode: gin.TestMode},
		JWT:        config.JWTConfig{Secret: "router-secret"},
		Monitoring: config.MonitoringConfig{MetricsToken: "m"},
	}
}

func serve(r http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(""))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter(t *testing.T) {
	payments := &stubPayments{}
	notify := &stubNotify{}
	r := SetupRouter(testConfig(), Deps{Payments: payments, Notify: notify})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", "Bearer m").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/payment/methods", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/payment/statuses", "").Code)

	// 回调无需认证
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/payment/notify/wechat", "").Code)
	assert.Equal(t, 1, notify.calls)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/payment-orders/po-1", "").Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"store_id": "store-3",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("router-secret"))
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/api/v1/payment-orders/po-1", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store-3", payments.storeID)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/payment-orders/has?source_order_type=subscription", "Bearer "+token).Code)
}

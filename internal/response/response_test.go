package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{payerr.New(payerr.ErrNotFound, "x"), http.StatusNotFound},
		{payerr.New(payerr.ErrUnsupportedType, "x"), http.StatusBadRequest},
		{payerr.New(payerr.ErrInvalidState, "x"), http.StatusBadRequest},
		{payerr.New(payerr.ErrStatusConflict, "x"), http.StatusConflict},
		{payerr.New(payerr.ErrUnsupportedPayment, "x"), http.StatusBadRequest},
		{payerr.New(payerr.ErrVerificationFailed, "x"), http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", payerr.New(payerr.ErrGatewayError, "x")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestFromError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, payerr.Newf(payerr.ErrInvalidState, "payment order %s is paid", "abc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, payerr.CodeInvalidState, body.Code)
	assert.Equal(t, "payment order abc is paid", body.Message)
}

func TestFromError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/utils"
	"go.uber.org/zap"
)

// envelope 下游服务统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTPHandler 通过 HTTP 调用下游订单服务
//
//	GET  {base}/{id}         查询订单
//	POST {base}/{id}/paid    标记已支付
//	POST {base}/{id}/cancel  取消订单
type HTTPHandler struct {
	sourceOrderType string
	baseURL         string
	token           string
	client          *http.Client
}

// NewHTTPHandler 创建 HTTP 下游订单处理器
func NewHTTPHandler(sourceOrderType, baseURL, token string, timeout time.Duration) *HTTPHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPHandler{
		sourceOrderType: sourceOrderType,
		baseURL:         strings.TrimRight(baseURL, "/"),
		token:           token,
		client:          &http.Client{Timeout: timeout},
	}
}

// Resolve 查询下游订单金额、支付方式与名称
func (h *HTTPHandler) Resolve(ctx context.Context, sourceOrderID string) (*SourceOrder, error) {
	env, err := h.do(ctx, http.MethodGet, sourceOrderID, "")
	if err != nil {
		return nil, err
	}

	var order SourceOrder
	if err := json.Unmarshal(env.Data, &order); err != nil {
		return nil, fmt.Errorf("解析下游订单失败: %w", err)
	}
	return &order, nil
}

// Credit 标记下游订单已支付
func (h *HTTPHandler) Credit(ctx context.Context, sourceOrderID string) error {
	_, err := h.do(ctx, http.MethodPost, sourceOrderID, "paid")
	return err
}

// Cancel 取消下游订单
func (h *HTTPHandler) Cancel(ctx context.Context, sourceOrderID string) error {
	_, err := h.do(ctx, http.MethodPost, sourceOrderID, "cancel")
	return err
}

func (h *HTTPHandler) do(ctx context.Context, method, sourceOrderID, action string) (*envelope, error) {
	target := h.baseURL + "/" + url.PathEscape(sourceOrderID)
	if action != "" {
		target += "/" + action
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("创建下游请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		logger.Logger.Warn("调用下游订单服务失败",
			zap.String("source_order_type", h.sourceOrderType),
			zap.String("source_order_id", sourceOrderID),
			zap.String("url", target),
			zap.Error(err))
		return nil, fmt.Errorf("调用下游订单服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logger.Logger.Warn("读取下游订单服务响应失败",
			zap.String("source_order_type", h.sourceOrderType),
			zap.String("source_order_id", sourceOrderID),
			zap.String("url", target),
			zap.Int("status_code", resp.StatusCode),
			zap.Error(err))
		return nil, fmt.Errorf("读取下游订单服务响应失败 (HTTP %d): %w", resp.StatusCode, err)
	}
	logger.Logger.Debug("下游订单服务响应",
		zap.String("source_order_type", h.sourceOrderType),
		zap.String("url", target),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		return nil, payerr.Newf(payerr.ErrNotFound, "%s order %s not found", h.sourceOrderType, sourceOrderID)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("下游订单服务返回无法识别 (HTTP %d): %s", resp.StatusCode, utils.Truncate(string(body), 100))
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, fmt.Errorf("下游订单服务返回错误 (HTTP %d, code %d): %s", resp.StatusCode, env.Code, env.Message)
	}
	return &env, nil
}

package wechat

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options 微信支付商户配置
type Options struct {
	MerchantID         string
	MerchantCertSerial string
	MerchantPrivateKey string
	PlatformPublicKey  string
	APIv3Key           string
	AppID              string
	NotifyURL          string
	BaseURL            string
	Timeout            time.Duration
	VerifyResponse     bool
}

// Provider 微信支付 APIv3 Native 支付
type Provider struct {
	mchID          string
	serialNo       string
	appID          string
	notifyURL      string
	baseURL        string
	apiV3Key       []byte
	privateKey     *rsa.PrivateKey
	platformKey    *rsa.PublicKey
	platformSerial string
	verifyResponse bool
	httpClient     *http.Client
	now            func() time.Time
}

// NewProvider 创建微信支付网关
func NewProvider(opts Options) (*Provider, error) {
	if opts.MerchantID == "" {
		return nil, fmt.Errorf("微信支付商户号未配置")
	}
	if len(opts.APIv3Key) != 32 {
		return nil, fmt.Errorf("APIv3 密钥长度必须为 32 字节")
	}

	privateKey, err := parsePrivateKey(opts.MerchantPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("解析商户私钥失败: %w", err)
	}
	platformKey, platformSerial, err := parsePlatformKey(opts.PlatformPublicKey)
	if err != nil {
		return nil, fmt.Errorf("解析微信支付平台公钥失败: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.mch.weixin.qq.com/"
	}

	return &Provider{
		mchID:          opts.MerchantID,
		serialNo:       opts.MerchantCertSerial,
		appID:          opts.AppID,
		notifyURL:      opts.NotifyURL,
		baseURL:        strings.TrimRight(baseURL, "/") + "/",
		apiV3Key:       []byte(opts.APIv3Key),
		privateKey:     privateKey,
		platformKey:    platformKey,
		platformSerial: platformSerial,
		verifyResponse: opts.VerifyResponse,
		httpClient:     &http.Client{Timeout: timeout},
		now:            time.Now,
	}, nil
}

// Method 支付方式
func (p *Provider) Method() string {
	return models.PaymentMethodWechat
}

type nativeRequest struct {
	MchID       string       `json:"mchid"`
	OutTradeNo  string       `json:"out_trade_no"`
	AppID       string       `json:"appid"`
	Description string       `json:"description"`
	NotifyURL   string       `json:"notify_url"`
	Amount      nativeAmount `json:"amount"`
}

type nativeAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// CreateIntent Native 下单，返回二维码链接
func (p *Provider) CreateIntent(ctx context.Context, req gateway.IntentRequest, ex *gateway.Exchange) (*gateway.Intent, error) {
	description := req.Description
	if description == "" {
		description = req.Reference
	}
	body := nativeRequest{
		MchID:       p.mchID,
		OutTradeNo:  req.Reference,
		AppID:       p.appID,
		Description: description,
		NotifyURL:   p.notifyURL,
		Amount: nativeAmount{
			Total:    req.Amount.Shift(2).IntPart(), // 元转分
			Currency: "CNY",
		},
	}

	statusCode, respBody, err := p.do(ctx, http.MethodPost, "v3/pay/transactions/native", body, ex)
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, &gateway.StatusError{StatusCode: statusCode, Body: string(respBody)}
	}

	var resp struct {
		CodeURL string `json:"code_url"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil || resp.CodeURL == "" {
		return nil, fmt.Errorf("unrecognized response from wechat pay")
	}
	return &gateway.Intent{Reference: req.Reference, CodeURL: resp.CodeURL}, nil
}

// errCodeOrderNotExist 用户从未发起支付时，微信侧不存在该订单
const errCodeOrderNotExist = "ORDER_NOT_EXIST"

// CloseIntent 关闭未支付订单
// 204 为关单成功；400 视为订单已终结（已支付或已关闭），按成功处理；
// 404 ORDER_NOT_EXIST 表示微信侧从未下单，视为已关闭
func (p *Provider) CloseIntent(ctx context.Context, reference string, ex *gateway.Exchange) (*gateway.CloseResult, error) {
	path := "v3/pay/transactions/out-trade-no/" + url.PathEscape(reference) + "/close"
	statusCode, respBody, err := p.do(ctx, http.MethodPost, path, map[string]string{"mchid": p.mchID}, ex)
	if err != nil {
		return nil, err
	}

	switch {
	case statusCode == http.StatusNoContent:
		return &gateway.CloseResult{Closed: true}, nil
	case statusCode == http.StatusBadRequest:
		return &gateway.CloseResult{AlreadyFinalized: true}, nil
	case orderNotExist(statusCode, respBody):
		return &gateway.CloseResult{Closed: true}, nil
	case statusCode >= 200 && statusCode < 300:
		return &gateway.CloseResult{Message: fmt.Sprintf("close failed: HTTP %d", statusCode)}, nil
	default:
		return nil, &gateway.StatusError{StatusCode: statusCode, Body: string(respBody)}
	}
}

type queryResponse struct {
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc"`
	Amount         *struct {
		Total int64 `json:"total"`
	} `json:"amount"`
}

// QueryStatus 按商户订单号查单
func (p *Provider) QueryStatus(ctx context.Context, reference string, ex *gateway.Exchange) (*gateway.TradeStatus, error) {
	path := "v3/pay/transactions/out-trade-no/" + url.PathEscape(reference) + "?mchid=" + url.QueryEscape(p.mchID)
	statusCode, respBody, err := p.do(ctx, http.MethodGet, path, nil, ex)
	if err != nil {
		return nil, err
	}
	if orderNotExist(statusCode, respBody) {
		return &gateway.TradeStatus{State: gateway.TradeStateNotPay, Description: "order not exist"}, nil
	}
	if statusCode != http.StatusOK {
		return nil, &gateway.StatusError{StatusCode: statusCode, Body: string(respBody)}
	}

	var resp queryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil || resp.TradeState == "" {
		return nil, fmt.Errorf("unrecognized response from wechat pay")
	}

	status := &gateway.TradeStatus{
		State:       resp.TradeState,
		Description: resp.TradeStateDesc,
	}
	if resp.Amount != nil {
		status.Amount = centsToYuan(resp.Amount.Total)
	}
	if status.Description == "" && !status.Paid() {
		status.Description = "order not paid"
	}
	return status, nil
}

// do 发送签名请求，返回状态码与响应体；非 2xx 不视为错误，由调用方按接口语义处理
func (p *Provider) do(ctx context.Context, method, path string, payload interface{}, ex *gateway.Exchange) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("序列化请求失败: %w", err)
		}
	}

	ex.URL = path
	ex.Request = string(body)
	if method == http.MethodGet {
		if u, err := url.Parse(path); err == nil {
			ex.Request = u.RawQuery
		}
	}

	timestamp := p.now().Unix()
	nonce := utils.GenerateNonce()
	auth, err := p.authorization(method, "/"+path, string(body), timestamp, nonce)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "golang-pay-settlement")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("请求微信支付失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("读取微信支付响应失败: %w", err)
	}
	ex.Response = fmt.Sprintf("%d: %s", resp.StatusCode, respBody)

	logger.Logger.Debug("微信支付响应",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode))

	if p.verifyResponse && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := p.verifyResponseSignature(resp.Header, respBody); err != nil {
			return resp.StatusCode, respBody, fmt.Errorf("微信支付应答验签失败: %w", err)
		}
	}

	return resp.StatusCode, respBody, nil
}

// verifyResponseSignature 校验微信支付应答签名
func (p *Provider) verifyResponseSignature(h http.Header, body []byte) error {
	headers := p.ExtractHeaders(h)
	if headers.Signature == "" {
		return fmt.Errorf("应答缺少签名")
	}
	message := gateway.JoinedByLineFeed(headers.Timestamp, headers.Nonce, string(body))
	return p.VerifySignature(headers.Serial, message, headers.Signature)
}

// ExtractHeaders 提取回调或应答中的验签请求头
func (p *Provider) ExtractHeaders(h http.Header) gateway.WebhookHeaders {
	return gateway.WebhookHeaders{
		Signature: h.Get("Wechatpay-Signature"),
		Timestamp: h.Get("Wechatpay-Timestamp"),
		Serial:    h.Get("Wechatpay-Serial"),
		Nonce:     h.Get("Wechatpay-Nonce"),
	}
}

// VerifySignature 使用平台公钥验签
// 配置的是平台证书时，要求请求头中的序列号与证书一致
func (p *Provider) VerifySignature(serial string, message []byte, signature string) error {
	if p.platformSerial != "" && serial != "" && !strings.EqualFold(serial, p.platformSerial) {
		return fmt.Errorf("unknown platform certificate serial %s", serial)
	}
	return verifySHA256WithRSA(message, signature, p.platformKey)
}

// DecryptResource 解密回调报文中的 resource
func (p *Provider) DecryptResource(r gateway.Resource) ([]byte, error) {
	if r.Algorithm != "" && r.Algorithm != "AEAD_AES_256_GCM" {
		return nil, fmt.Errorf("unsupported resource algorithm %s", r.Algorithm)
	}
	return decryptAES256GCM(p.apiV3Key, r.Nonce, r.AssociatedData, r.Ciphertext)
}

// orderNotExist 是否为 404 ORDER_NOT_EXIST 应答
func orderNotExist(statusCode int, body []byte) bool {
	if statusCode != http.StatusNotFound {
		return false
	}
	var e struct {
		Code string `json:"code"`
	}
	return json.Unmarshal(body, &e) == nil && e.Code == errCodeOrderNotExist
}

// centsToYuan 分转元，保留两位小数
func centsToYuan(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

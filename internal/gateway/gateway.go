package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// TradeStateSuccess 支付成功的交易状态，各网关统一归一为该值
const TradeStateSuccess = "SUCCESS"

// TradeStateNotPay 网关侧尚未支付（含从未下单）
const TradeStateNotPay = "NOTPAY"

// Exchange 一次网关调用的请求与响应原文，由 Provider 在调用过程中填写
type Exchange struct {
	URL      string
	Request  string
	Response string
}

// IntentRequest 下单参数
type IntentRequest struct {
	Reference   string          // 外部订单号（已编码）
	Description string          // 商品描述
	Amount      decimal.Decimal // 金额（元）
}

// Intent 网关返回的支付意图
type Intent struct {
	Reference string `json:"reference"`
	CodeURL   string `json:"code_url"` // 二维码内容
}

// CloseResult 关单结果
//
// AlreadyFinalized 表示网关以“订单已终结”拒绝关单（微信支付返回 HTTP 400），
// 按关单成功处理：订单可能在查询与关单之间已被网关自动终结。
// 该判断不检查响应体，仅适用于已知的关单接口。
type CloseResult struct {
	Closed           bool
	AlreadyFinalized bool
	Message          string
}

// TradeStatus 查单结果
type TradeStatus struct {
	State       string // 归一后的交易状态，成功为 SUCCESS
	Description string
	Amount      string // 实付金额（元，两位小数）
}

// Paid 是否已支付
func (s *TradeStatus) Paid() bool {
	return s.State == TradeStateSuccess
}

// Provider 支付网关适配器
type Provider interface {
	// Method 支付方式标识，如 wechat、alipay
	Method() string
	CreateIntent(ctx context.Context, req IntentRequest, ex *Exchange) (*Intent, error)
	CloseIntent(ctx context.Context, reference string, ex *Exchange) (*CloseResult, error)
	QueryStatus(ctx context.Context, reference string, ex *Exchange) (*TradeStatus, error)
}

// WebhookHeaders 回调请求中的验签相关请求头
type WebhookHeaders struct {
	Signature string
	Timestamp string
	Serial    string
	Nonce     string
}

// Resource 回调报文中的加密数据
type Resource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	AssociatedData string `json:"associated_data"`
	OriginalType   string `json:"original_type"`
}

// WebhookProvider 支持签名加密回调的网关
type WebhookProvider interface {
	Provider
	ExtractHeaders(h http.Header) WebhookHeaders
	VerifySignature(serial string, message []byte, signature string) error
	DecryptResource(r Resource) ([]byte, error)
}

// StatusError 网关返回了非预期的 HTTP 状态码
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway responded HTTP %d: %s", e.StatusCode, e.Body)
}

// JoinedByLineFeed 以换行符连接各段并以换行结尾，构造验签名串
func JoinedByLineFeed(parts ...string) []byte {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/shopspring/decimal"
)

// DefaultTimeWindow 回调时间戳允许的最大偏差
const DefaultTimeWindow = 300 * time.Second

// 验证失败时写入回调日志的说明
const (
	MessageInvalidTimestamp   = "invalid notification timestamp"
	MessageStale              = "notification timestamp outside allowed window"
	MessageSignatureFailed    = "signature verification failed"
	MessageMalformedBody      = "malformed notification body"
	MessageDecryptionFailed   = "notification decryption failed"
	MessageMissingTradeState  = "notification missing trade state"
	MessageUnknownReference   = "unknown payment reference"
	MessageUnsupportedPayment = "unsupported payment method"
)

// Envelope 回调报文外层
type Envelope struct {
	ID           string           `json:"id"`
	CreateTime   string           `json:"create_time"`
	EventType    string           `json:"event_type"`
	ResourceType string           `json:"resource_type"`
	Summary      string           `json:"summary"`
	Resource     gateway.Resource `json:"resource"`
}

// transaction 解密后的交易数据
type transaction struct {
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
	TradeState     string `json:"trade_state"`
	TradeStateDesc string `json:"trade_state_desc"`
	Amount         struct {
		Total      int64 `json:"total"`
		PayerTotal int64 `json:"payer_total"`
	} `json:"amount"`
}

// Event 验证通过的回调事件
type Event struct {
	Reference   string // 外部订单号
	TradeState  string
	Description string
	Amount      string // 订单金额（元，两位小数）
	Plaintext   []byte // 解密后的原文
}

// Paid 是否为支付成功事件
func (e *Event) Paid() bool {
	return e.TradeState == gateway.TradeStateSuccess
}

// Verifier 回调验证：时效、签名、解密、交易状态，任一步失败即返回 VerificationFailed
type Verifier struct {
	window time.Duration
	now    func() time.Time
}

// NewVerifier 创建回调验证器
func NewVerifier(window time.Duration) *Verifier {
	if window <= 0 {
		window = DefaultTimeWindow
	}
	return &Verifier{window: window, now: time.Now}
}

// Verify 验证回调并解密出交易事件
func (v *Verifier) Verify(p gateway.WebhookProvider, h gateway.WebhookHeaders, body []byte) (*Event, error) {
	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return nil, payerr.New(payerr.ErrVerificationFailed, MessageInvalidTimestamp)
	}
	if !v.fresh(ts) {
		return nil, payerr.New(payerr.ErrVerificationFailed, MessageStale)
	}

	message := gateway.JoinedByLineFeed(h.Timestamp, h.Nonce, string(body))
	if err := p.VerifySignature(h.Serial, message, h.Signature); err != nil {
		return nil, payerr.Wrap(payerr.ErrVerificationFailed, MessageSignatureFailed, err)
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Resource.Ciphertext == "" {
		return nil, payerr.New(payerr.ErrVerificationFailed, MessageMalformedBody)
	}

	plaintext, err := p.DecryptResource(envelope.Resource)
	if err != nil {
		return nil, payerr.Wrap(payerr.ErrVerificationFailed, MessageDecryptionFailed, err)
	}

	var tx transaction
	if err := json.Unmarshal(plaintext, &tx); err != nil || tx.TradeState == "" {
		return nil, payerr.New(payerr.ErrVerificationFailed, MessageMissingTradeState)
	}

	return &Event{
		Reference:   tx.OutTradeNo,
		TradeState:  tx.TradeState,
		Description: tx.TradeStateDesc,
		Amount:      decimal.New(tx.Amount.Total, -2).StringFixed(2),
		Plaintext:   plaintext,
	}, nil
}

// fresh |当前时间 - 回调时间| 不超过窗口（按秒，含边界）
func (v *Verifier) fresh(ts int64) bool {
	diff := v.now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(v.window/time.Second)
}

package alipay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
	"go.uber.org/zap"
)

// 支付宝业务错误码
const (
	subCodeTradeNotExist    = "ACQ.TRADE_NOT_EXIST"
	subCodeTradeStatusError = "ACQ.TRADE_STATUS_ERROR"
)

// Options 支付宝应用配置
type Options struct {
	AppID           string
	PrivateKey      string
	AlipayPublicKey string
	IsProduction    bool
}

// TradeAPI 当面付所需的支付宝接口，*alipay.Client 实现该接口
type TradeAPI interface {
	TradePreCreate(ctx context.Context, param alipay.TradePreCreate) (*alipay.TradePreCreateRsp, error)
	TradeClose(ctx context.Context, param alipay.TradeClose) (*alipay.TradeCloseRsp, error)
	TradeQuery(ctx context.Context, param alipay.TradeQuery) (*alipay.TradeQueryRsp, error)
}

// Provider 支付宝当面付（扫码）网关
// 不接收异步通知，交易结果只通过查单（手动查单与超时关单）获取
type Provider struct {
	client TradeAPI
}

// NewProvider 创建支付宝网关
func NewProvider(opts Options) (*Provider, error) {
	client, err := alipay.New(opts.AppID, opts.PrivateKey, opts.IsProduction)
	if err != nil {
		return nil, fmt.Errorf("创建支付宝客户端失败: %w", err)
	}
	if opts.AlipayPublicKey != "" {
		if err := client.LoadAliPayPublicKey(opts.AlipayPublicKey); err != nil {
			return nil, fmt.Errorf("加载支付宝公钥失败: %w", err)
		}
	}
	return NewProviderWithClient(client), nil
}

// NewProviderWithClient 使用已有客户端创建网关
func NewProviderWithClient(client TradeAPI) *Provider {
	return &Provider{client: client}
}

// Method 支付方式
func (p *Provider) Method() string {
	return models.PaymentMethodAlipay
}

// CreateIntent 预下单，返回二维码内容
func (p *Provider) CreateIntent(ctx context.Context, req gateway.IntentRequest, ex *gateway.Exchange) (*gateway.Intent, error) {
	subject := req.Description
	if subject == "" {
		subject = req.Reference
	}
	param := alipay.TradePreCreate{
		Trade: alipay.Trade{
			Subject:     subject,
			OutTradeNo:  req.Reference,
			TotalAmount: req.Amount.StringFixed(2),
		},
	}
	ex.URL = "alipay.trade.precreate"
	ex.Request = marshal(param)

	rsp, err := p.client.TradePreCreate(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("调用支付宝预下单失败: %w", err)
	}
	ex.Response = marshal(rsp)

	if rsp.IsFailure() {
		return nil, fmt.Errorf("alipay precreate failed: %s %s", rsp.SubCode, rsp.SubMsg)
	}
	return &gateway.Intent{Reference: req.Reference, CodeURL: rsp.QRCode}, nil
}

// CloseIntent 关闭交易
// 用户未扫码时交易在支付宝侧不存在，视为已关闭；交易状态不允许关闭时视为已终结
func (p *Provider) CloseIntent(ctx context.Context, reference string, ex *gateway.Exchange) (*gateway.CloseResult, error) {
	param := alipay.TradeClose{OutTradeNo: reference}
	ex.URL = "alipay.trade.close"
	ex.Request = marshal(param)

	rsp, err := p.client.TradeClose(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("调用支付宝关单失败: %w", err)
	}
	ex.Response = marshal(rsp)

	if !rsp.IsFailure() {
		return &gateway.CloseResult{Closed: true}, nil
	}
	switch rsp.SubCode {
	case subCodeTradeNotExist:
		return &gateway.CloseResult{Closed: true}, nil
	case subCodeTradeStatusError:
		return &gateway.CloseResult{AlreadyFinalized: true}, nil
	default:
		logger.Logger.Warn("支付宝关单失败",
			zap.String("reference", reference),
			zap.String("sub_code", rsp.SubCode),
			zap.String("sub_msg", rsp.SubMsg))
		return &gateway.CloseResult{Message: fmt.Sprintf("close failed: %s %s", rsp.SubCode, rsp.SubMsg)}, nil
	}
}

// QueryStatus 查询交易，TRADE_SUCCESS 与 TRADE_FINISHED 归一为 SUCCESS
func (p *Provider) QueryStatus(ctx context.Context, reference string, ex *gateway.Exchange) (*gateway.TradeStatus, error) {
	param := alipay.TradeQuery{OutTradeNo: reference}
	ex.URL = "alipay.trade.query"
	ex.Request = marshal(param)

	rsp, err := p.client.TradeQuery(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("调用支付宝查单失败: %w", err)
	}
	ex.Response = marshal(rsp)

	if rsp.IsFailure() {
		if rsp.SubCode == subCodeTradeNotExist {
			return &gateway.TradeStatus{State: gateway.TradeStateNotPay, Description: "order not paid"}, nil
		}
		return nil, fmt.Errorf("alipay query failed: %s %s", rsp.SubCode, rsp.SubMsg)
	}

	status := &gateway.TradeStatus{
		State:       string(rsp.TradeStatus),
		Description: string(rsp.TradeStatus),
	}
	if rsp.TradeStatus == alipay.TradeStatusSuccess || rsp.TradeStatus == alipay.TradeStatusFinished {
		status.State = gateway.TradeStateSuccess
	}
	if amount, err := decimal.NewFromString(rsp.TotalAmount); err == nil {
		status.Amount = amount.StringFixed(2)
	}
	return status, nil
}

func marshal(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

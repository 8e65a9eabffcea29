package service

import (
	"context"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/models"
	"github.com/golang-pay-settlement/internal/order"
	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/golang-pay-settlement/internal/settlement"
	"go.uber.org/zap"
)

// PaymentGateway 支付网关调用（带调用日志）
type PaymentGateway interface {
	Methods() []string
	CreateIntent(ctx context.Context, order *models.PaymentOrder) (*gateway.Intent, error)
	CloseIntent(ctx context.Context, order *models.PaymentOrder) (bool, error)
	QueryStatus(ctx context.Context, order *models.PaymentOrder) (*gateway.QueryResult, error)
}

// PollSettler 查单路径的结算
type PollSettler interface {
	SettlePoll(ctx context.Context, orderID string, result *gateway.QueryResult) (*settlement.Outcome, error)
}

// PayResult 发起支付结果
type PayResult struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	CodeURL string `json:"code_url"`
}

// CheckResult 查单结果
type CheckResult struct {
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PaymentService 支付单应用服务，所有操作按店铺隔离
type PaymentService struct {
	machine *order.Machine
	gateway PaymentGateway
	settler PollSettler
}

// NewPaymentService 创建支付单应用服务
func NewPaymentService(machine *order.Machine, gw PaymentGateway, settler PollSettler) *PaymentService {
	return &PaymentService{machine: machine, gateway: gw, settler: settler}
}

// Create 创建支付单
func (s *PaymentService) Create(ctx context.Context, storeID, sourceOrderType, sourceOrderID string) (*models.PaymentOrder, error) {
	return s.machine.Create(ctx, order.CreateRequest{
		StoreID:         storeID,
		SourceOrderType: sourceOrderType,
		SourceOrderID:   sourceOrderID,
	})
}

// Get 查询本店铺的支付单，其他店铺的支付单按不存在处理
func (s *PaymentService) Get(ctx context.Context, storeID, id string) (*models.PaymentOrder, error) {
	o, err := s.machine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.StoreID != storeID {
		return nil, payerr.Newf(payerr.ErrNotFound, "payment order %s not found", id)
	}
	return o, nil
}

// Has 店铺下是否存在指定来源类型、指定状态的支付单
func (s *PaymentService) Has(ctx context.Context, storeID, sourceOrderType, status string) (bool, error) {
	return s.machine.Has(ctx, storeID, sourceOrderType, status)
}

// Pay 网关下单，返回二维码内容
func (s *PaymentService) Pay(ctx context.Context, storeID, id string) (*PayResult, error) {
	o, err := s.Get(ctx, storeID, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.PaymentOrderStatusPending {
		return nil, payerr.Newf(payerr.ErrInvalidState, "payment order %s is %s, only pending orders can be paid", id, o.Status)
	}

	intent, err := s.gateway.CreateIntent(ctx, o)
	if err != nil {
		return nil, err
	}
	return &PayResult{OrderID: o.ID, Method: o.Payment, CodeURL: intent.CodeURL}, nil
}

// Check 主动查单，网关确认支付时交由结算协调器处理
func (s *PaymentService) Check(ctx context.Context, storeID, id string) (*CheckResult, error) {
	o, err := s.Get(ctx, storeID, id)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case models.PaymentOrderStatusPaid:
		return &CheckResult{Paid: true, Status: o.Status}, nil
	case models.PaymentOrderStatusPending:
	default:
		return &CheckResult{Status: o.Status, Message: o.Message}, nil
	}

	result, err := s.gateway.QueryStatus(ctx, o)
	if err != nil {
		return nil, err
	}
	if !result.Paid() {
		logger.Logger.Info("查单结果为未支付",
			zap.String("order_id", o.ID),
			zap.String("trade_state", result.State),
			zap.String("description", result.Description))
		return &CheckResult{Status: o.Status, Message: result.Description}, nil
	}

	outcome, err := s.settler.SettlePoll(ctx, o.ID, result)
	if err != nil {
		return nil, err
	}

	current, err := s.machine.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Paid: outcome.Paid(), Status: current.Status, Message: current.Message}, nil
}

// Cancel 取消支付单
func (s *PaymentService) Cancel(ctx context.Context, storeID, id string) (bool, error) {
	if _, err := s.Get(ctx, storeID, id); err != nil {
		return false, err
	}
	return s.machine.Cancel(ctx, id)
}

// Methods 可用的支付方式
func (s *PaymentService) Methods() []string {
	return s.gateway.Methods()
}

// Statuses 支付单状态键值对
func (s *PaymentService) Statuses() []models.StatusLabel {
	return order.StatusLabels()
}

package downstream

import (
	"context"
	"sort"
	"sync"

	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/shopspring/decimal"
)

// SourceOrder 下游业务订单的支付相关信息
type SourceOrder struct {
	Amount  decimal.Decimal `json:"amount"`
	Payment string          `json:"payment"`
	Name    string          `json:"name"`
}

// Handler 单一来源订单类型的处理器
// 订单不存在时必须返回 payerr.ErrNotFound 类别的错误
type Handler interface {
	Resolve(ctx context.Context, sourceOrderID string) (*SourceOrder, error)
	Credit(ctx context.Context, sourceOrderID string) error
	Cancel(ctx context.Context, sourceOrderID string) error
}

// Registry 下游订单端口，按来源订单类型分发到对应处理器
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry 创建下游订单端口
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register 注册来源订单类型处理器
func (r *Registry) Register(sourceOrderType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[sourceOrderType] = h
}

// Types 已注册的来源订单类型
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) handler(sourceOrderType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[sourceOrderType]
	if !ok {
		return nil, payerr.Newf(payerr.ErrUnsupportedType, "unsupported source order type: %s", sourceOrderType)
	}
	return h, nil
}

// Resolve 查询下游订单
func (r *Registry) Resolve(ctx context.Context, sourceOrderType, sourceOrderID string) (*SourceOrder, error) {
	h, err := r.handler(sourceOrderType)
	if err != nil {
		return nil, err
	}
	return h.Resolve(ctx, sourceOrderID)
}

// Credit 通知下游订单已支付
func (r *Registry) Credit(ctx context.Context, sourceOrderType, sourceOrderID string) error {
	h, err := r.handler(sourceOrderType)
	if err != nil {
		return err
	}
	return h.Credit(ctx, sourceOrderID)
}

// Cancel 取消下游订单
func (r *Registry) Cancel(ctx context.Context, sourceOrderType, sourceOrderID string) error {
	h, err := r.handler(sourceOrderType)
	if err != nil {
		return err
	}
	return h.Cancel(ctx, sourceOrderID)
}

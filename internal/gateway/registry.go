package gateway

import (
	"sort"
	"sync"

	"github.com/golang-pay-settlement/internal/payerr"
)

// Registry 支付网关注册表
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewRegistry 创建支付网关注册表
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register 注册支付网关
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Method()] = p
}

// Get 按支付方式获取网关
func (r *Registry) Get(method string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[method]
	if !ok {
		return nil, payerr.Newf(payerr.ErrUnsupportedPayment, "unsupported payment method: %s", method)
	}
	return p, nil
}

// Webhook 获取支持签名回调的网关
func (r *Registry) Webhook(method string) (WebhookProvider, error) {
	p, err := r.Get(method)
	if err != nil {
		return nil, err
	}
	wp, ok := p.(WebhookProvider)
	if !ok {
		return nil, payerr.Newf(payerr.ErrUnsupportedPayment, "payment method %s does not accept signed notifications", method)
	}
	return wp, nil
}

// Methods 已注册的支付方式
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.providers))
	for m := range r.providers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

package mq

import (
	"time"

	"github.com/golang-pay-settlement/internal/models"
)

// PaymentOrderStatusMessage 支付单状态变更消息
type PaymentOrderStatusMessage struct {
	OrderID         string `json:"order_id"`
	StoreID         string `json:"store_id"`
	SourceOrderType string `json:"source_type"`
	SourceOrderID   string `json:"source_id"`
	Payment         string `json:"payment"`
	FromStatus      string `json:"from_status"`
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	Amount          string `json:"amount"`
	OccurredAt      string `json:"occurred_at"` // 格式：2006-01-02 15:04:05
}

// NewPaymentOrderStatusMessage 根据已提交的状态流转构造消息
func NewPaymentOrderStatusMessage(order *models.PaymentOrder, from string, at time.Time) PaymentOrderStatusMessage {
	return PaymentOrderStatusMessage{
		OrderID:         order.ID,
		StoreID:         order.StoreID,
		SourceOrderType: order.SourceOrderType,
		SourceOrderID:   order.SourceOrderID,
		Payment:         order.Payment,
		FromStatus:      from,
		Status:          order.Status,
		Message:         order.Message,
		Amount:          order.AmountString(),
		OccurredAt:      at.Format("2006-01-02 15:04:05"),
	}
}

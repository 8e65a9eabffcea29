package gateway

import (
	"strings"

	"github.com/golang-pay-settlement/internal/payerr"
	"github.com/google/uuid"
)

// EncodeReference 支付单ID转外部订单号：去掉 UUID 中的连字符，得到 32 位十六进制串
func EncodeReference(orderID string) string {
	return strings.ReplaceAll(orderID, "-", "")
}

// DecodeReference 外部订单号还原为支付单ID
func DecodeReference(reference string) (string, error) {
	id, err := uuid.Parse(reference)
	if err != nil {
		return "", payerr.Newf(payerr.ErrNotFound, "invalid payment reference %q", reference)
	}
	return id.String(), nil
}

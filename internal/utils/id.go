package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID 生成支付单ID（标准 UUID 格式）
func GenerateID() string {
	return uuid.New().String()
}

// GenerateNonce 生成 32 位随机串，用于请求签名
func GenerateNonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

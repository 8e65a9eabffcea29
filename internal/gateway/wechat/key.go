package wechat

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// parsePrivateKey 解析商户 API 私钥（apiclient_key.pem，PKCS8）
func parsePrivateKey(keyStr string) (*rsa.PrivateKey, error) {
	key, err := utils.LoadPrivateKey(normalizePEM(keyStr, "PRIVATE KEY"))
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return key, nil
}

// parsePlatformKey 解析微信支付平台证书或平台公钥
// 传入证书时同时返回证书序列号（大写十六进制），传入公钥时序列号为空
func parsePlatformKey(keyStr string) (*rsa.PublicKey, string, error) {
	if strings.Contains(keyStr, "BEGIN CERTIFICATE") {
		cert, err := utils.LoadCertificate(strings.TrimSpace(keyStr))
		if err != nil {
			return nil, "", fmt.Errorf("解析平台证书失败: %w", err)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, "", fmt.Errorf("平台证书公钥格式不正确")
		}
		return rsaKey, utils.GetCertificateSerialNumber(*cert), nil
	}

	pub, err := utils.LoadPublicKey(normalizePEM(keyStr, "PUBLIC KEY"))
	if err != nil {
		return nil, "", fmt.Errorf("解析平台公钥失败: %w", err)
	}
	return pub, "", nil
}

// normalizePEM 配置中可能只保存了去掉头尾的 base64 内容，补齐为 PEM
func normalizePEM(keyStr, blockType string) string {
	keyStr = strings.TrimSpace(keyStr)
	if strings.HasPrefix(keyStr, "-----BEGIN") {
		return keyStr
	}
	keyStr = strings.ReplaceAll(keyStr, "\n", "")
	keyStr = strings.ReplaceAll(keyStr, " ", "")
	return "-----BEGIN " + blockType + "-----\n" + formatKey(keyStr, 64) + "\n-----END " + blockType + "-----"
}

// formatKey 每 lineLen 个字符换行（PEM 格式要求）
func formatKey(keyStr string, lineLen int) string {
	var result strings.Builder
	for i := 0; i < len(keyStr); i += lineLen {
		end := i + lineLen
		if end > len(keyStr) {
			end = len(keyStr)
		}
		result.WriteString(keyStr[i:end])
		if end < len(keyStr) {
			result.WriteString("\n")
		}
	}
	return result.String()
}

package wechat

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/golang-pay-settlement/internal/gateway"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// authSchema APIv3 认证类型
const authSchema = "WECHATPAY2-SHA256-RSA2048"

// authorization 生成请求的 Authorization 头
// 签名串: HTTP方法\nURL\n时间戳\n随机串\n请求体\n
func (p *Provider) authorization(method, canonicalURL, body string, timestamp int64, nonce string) (string, error) {
	message := gateway.JoinedByLineFeed(method, canonicalURL, strconv.FormatInt(timestamp, 10), nonce, body)
	signature, err := signSHA256WithRSA(message, p.privateKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%d",serial_no="%s"`,
		authSchema, p.mchID, nonce, signature, timestamp, p.serialNo), nil
}

// signSHA256WithRSA SHA256withRSA 签名，返回 base64
func signSHA256WithRSA(message []byte, key *rsa.PrivateKey) (string, error) {
	signature, err := utils.SignSHA256WithRSA(string(message), key)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	return signature, nil
}

// verifySHA256WithRSA 校验 base64 编码的 SHA256withRSA 签名
// 平台证书与平台公钥两种模式共用同一把已加载的公钥，序列号在 VerifySignature 中比对
func verifySHA256WithRSA(message []byte, signature string, key *rsa.PublicKey) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("签名不是合法的 base64: %w", err)
	}
	hashed := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], sig); err != nil {
		return fmt.Errorf("签名校验不通过: %w", err)
	}
	return nil
}

// decryptAES256GCM 使用 APIv3 密钥解密回调报文
func decryptAES256GCM(key []byte, nonce, associatedData, ciphertext string) ([]byte, error) {
	plaintext, err := utils.DecryptAES256GCM(string(key), associatedData, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("解密失败: %w", err)
	}
	return []byte(plaintext), nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
wechat:
  merchant_id: "1900000001"
`)

	require.NoError(t, Load(path))
	assert.Equal(t, 9090, Cfg.App.Port)
	assert.Equal(t, "golang-pay-settlement", Cfg.App.Name)
	assert.Equal(t, "1900000001", Cfg.Wechat.MerchantID)
	assert.Equal(t, 600*time.Second, Cfg.Settlement.LockTTL)
	assert.Equal(t, 300*time.Second, Cfg.Settlement.NotifyTimeWindow)
	assert.Equal(t, "https://api.mch.weixin.qq.com/", Cfg.Wechat.BaseURL)
	assert.True(t, Cfg.Wechat.VerifyResponse)
}

func TestLoad_DownstreamServices(t *testing.T) {
	path := writeConfig(t, `
downstream:
  timeout: 3s
  services:
    subscription:
      base_url: http://subscription.local/orders
`)

	require.NoError(t, Load(path))
	assert.Equal(t, 3*time.Second, Cfg.Downstream.Timeout)
	assert.Equal(t, "http://subscription.local/orders", Cfg.Downstream.Services["subscription"].BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
redis:
  host: 127.0.0.1
`)
	t.Setenv("APP_REDIS_HOST", "redis.internal")

	require.NoError(t, Load(path))
	assert.Equal(t, "redis.internal", Cfg.Redis.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 3306, DBName: "pay", Charset: "utf8mb4"}
	assert.Equal(t, "u:p@tcp(db:3306)/pay?charset=utf8mb4&parseTime=True&loc=Local", c.GetDSN())
}

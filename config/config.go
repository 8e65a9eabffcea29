package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var Cfg *Config

// Config 应用配置结构
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RocketMQ   RocketMQConfig   `mapstructure:"rocketmq"`
	Wechat     WechatConfig     `mapstructure:"wechat"`
	Alipay     AlipayConfig     `mapstructure:"alipay"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Expiry     ExpiryConfig     `mapstructure:"expiry"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name         string        `mapstructure:"name"`
	Version      string        `mapstructure:"version"`
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogMode         bool          `mapstructure:"log_mode"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	MetricsToken       string   `mapstructure:"metrics_token"`
	MetricsIPWhitelist []string `mapstructure:"metrics_ip_whitelist"`
}

// RocketMQConfig RocketMQ 配置
type RocketMQConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Endpoint      string `mapstructure:"endpoint"`
	Port          int    `mapstructure:"port"`
	AccessKey     string `mapstructure:"access_key"`
	AccessSecret  string `mapstructure:"access_secret"`
	ProducerGroup string `mapstructure:"producer_group"`
	Topic         string `mapstructure:"topic"`
	LogLevel      string `mapstructure:"log_level"`
}

// WechatConfig 微信支付 APIv3 配置
type WechatConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MerchantID         string        `mapstructure:"merchant_id"`
	MerchantCertSerial string        `mapstructure:"merchant_cert_serial"`
	MerchantPrivateKey string        `mapstructure:"merchant_private_key"` // apiclient_key.pem 内容
	PlatformPublicKey  string        `mapstructure:"platform_public_key"`  // 平台证书或平台公钥 PEM
	APIv3Key           string        `mapstructure:"apiv3_key"`
	AppID              string        `mapstructure:"app_id"`
	NotifyURL          string        `mapstructure:"notify_url"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	VerifyResponse     bool          `mapstructure:"verify_response"`
}

// AlipayConfig 支付宝配置
type AlipayConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	AppID           string `mapstructure:"app_id"`
	PrivateKey      string `mapstructure:"private_key"`
	AlipayPublicKey string `mapstructure:"alipay_public_key"`
	IsProduction    bool   `mapstructure:"is_production"`
}

// SettlementConfig 结算配置
type SettlementConfig struct {
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	NotifyTimeWindow time.Duration `mapstructure:"notify_time_window"`
}

// ExpiryConfig 超时关单配置
type ExpiryConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
	BatchSize  int           `mapstructure:"batch_size"`
}

// DownstreamConfig 下游订单服务配置，键为来源订单类型
type DownstreamConfig struct {
	Timeout  time.Duration                     `mapstructure:"timeout"`
	Services map[string]DownstreamServiceConfig `mapstructure:"services"`
}

// DownstreamServiceConfig 单个下游订单服务
type DownstreamServiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// Load 加载配置文件
// 如果 configPath 为空，则根据环境变量 APP_ENV 自动选择配置文件
// APP_ENV 可选值: dev(默认), test, prod
func Load(configPath string) error {
	if configPath == "" {
		env := os.Getenv("APP_ENV")
		switch env {
		case "prod", "production":
			configPath = "config/config.prod.yaml"
		case "test", "testing":
			configPath = "config/config.test.yaml"
		case "dev", "development", "":
			configPath = "config/config.yaml"
		default:
			configPath = fmt.Sprintf("config/config.%s.yaml", env)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖配置
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败 [%s]: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	Cfg = cfg
	return nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return Cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "golang-pay-settlement")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.read_timeout", 10*time.Second)
	v.SetDefault("app.write_timeout", 10*time.Second)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("rocketmq.topic", "payment_order_status")
	v.SetDefault("wechat.base_url", "https://api.mch.weixin.qq.com/")
	v.SetDefault("wechat.timeout", 10*time.Second)
	v.SetDefault("wechat.verify_response", true)
	v.SetDefault("settlement.lock_ttl", 600*time.Second)
	v.SetDefault("settlement.notify_time_window", 300*time.Second)
	v.SetDefault("expiry.cron", "0 */5 * * * *")
	v.SetDefault("expiry.pending_ttl", 2*time.Hour)
	v.SetDefault("expiry.batch_size", 100)
	v.SetDefault("downstream.timeout", 10*time.Second)
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.Charset)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package database

import (
	"fmt"
	"time"

	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg config.DatabaseConfig) error {
	logLevel := logger.Silent
	if cfg.LogMode {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 sql.DB 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	DB = db
	return nil
}

// AutoMigrate 同步支付单及日志表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PaymentOrder{},
		&models.GatewayCallLog{},
		&models.NotificationLog{},
	); err != nil {
		return fmt.Errorf("同步表结构失败: %w", err)
	}
	return nil
}

// CloseMySQL 关闭数据库连接
func CloseMySQL() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

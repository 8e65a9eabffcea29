package cmd

import (
	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/database"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "同步支付单、网关调用日志、回调日志表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.InitMySQL(config.Cfg.Database); err != nil {
			return err
		}
		defer database.CloseMySQL()

		if err := database.AutoMigrate(database.DB); err != nil {
			return err
		}
		logger.Logger.Info("表结构同步完成")
		return nil
	},
}

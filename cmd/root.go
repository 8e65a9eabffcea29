package cmd

import (
	"fmt"
	"os"

	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/spf13/cobra"
)

// go build -ldflags "-X github.com/golang-pay-settlement/cmd.Version=x.y.z"
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "payment-settlement",
	Short:         "支付结算服务",
	Long:          "支付单状态机、网关调用、支付回调验签与幂等结算服务",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		// 配置文件优先级: --config > 环境变量 APP_ENV > 默认 config/config.yaml
		if err := config.Load(configPath); err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		if config.Cfg.App.Version == "" {
			config.Cfg.App.Version = Version
		}
		if err := logger.InitLogger(config.Cfg.Log); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, versionCmd)
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

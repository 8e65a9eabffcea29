package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-pay-settlement/config"
	"github.com/golang-pay-settlement/internal/logger"
	"github.com/golang-pay-settlement/internal/router"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与超时关单任务",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Cfg

	if err := openStores(cfg); err != nil {
		return err
	}
	defer closeStores()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var scheduler *cron.Cron
	if cfg.Expiry.Enabled {
		scheduler, err = a.expiry.Schedule(cfg.Expiry.Cron)
		if err != nil {
			return err
		}
	}

	r := router.SetupRouter(cfg, router.Deps{Payments: a.payments, Notify: a.notify})

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.App.Port),
		Handler:        r,
		ReadTimeout:    cfg.App.ReadTimeout,
		WriteTimeout:   cfg.App.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("服务器启动",
			zap.String("address", srv.Addr),
			zap.String("mode", cfg.App.Mode),
			zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务器启动失败: %w", err)
	}

	logger.Logger.Info("正在关闭服务器...")

	if scheduler != nil {
		// 等待正在执行的关单任务结束
		<-scheduler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("服务器强制关闭", zap.Error(err))
		return err
	}

	logger.Logger.Info("服务器已退出")
	return nil
}

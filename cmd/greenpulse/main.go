package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"greenpulse/internal/app"
	"greenpulse/internal/config"
	"greenpulse/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("加载配置失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	logger.L().Infof("GreenPulse started (store=%s, http=%v, bot=%v)",
		cfg.StoreBackend, cfg.HTTPEnabled, application.TelegramBot != nil)

	if err := application.Run(ctx); err != nil {
		logger.L().Errorf("运行出错: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx); err != nil {
		logger.L().Errorf("关闭失败: %v", err)
	}
	logger.L().Info("GreenPulse stopped")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"livecam/internal/app"
	"livecam/internal/config"
	"livecam/internal/logging"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load(os.Getenv("LIVECAM_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	gin.SetMode(gin.ReleaseMode)

	// SIGINT / SIGTERM でキャンセルされるコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("livecam が異常終了しました", "error", err)
		stop()
		os.Exit(1)
	}
}

// Package main はlivecamサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
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
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "YAML設定ファイルのパス")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 80)")
		frameDir   = flag.String("frame-dir", "", "フレームを書き込む一時ディレクトリ (デフォルト: /home/pi/ramfs)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("livecam")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *frameDir != "" {
		cfg.Frames.Dir = *frameDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が無効です: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info("livecam サーバーを起動します", "addr", cfg.ServerAddress(), "frame_dir", cfg.Frames.Dir)

	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("livecam が異常終了しました", "error", err)
		stop()
		os.Exit(1)
	}
}

// Package app はlivecamの各コンポーネントを組み立てて実行する
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"livecam/internal/camera"
	"livecam/internal/config"
	"livecam/internal/frames"
	"livecam/internal/metrics"
	"livecam/internal/retention"
	"livecam/internal/server"
)

// Run はキャプチャプロセスを起動し、クリーンアップループとHTTPサーバーを ctx が終了するまで実行する
//
// キャプチャプロセスはどの経路で戻っても（panicを含む）必ず終了させる。
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	store := frames.NewStore(cfg.Frames.Dir, cfg.Frames.Pattern)
	if err := store.EnsureDir(); err != nil {
		return err
	}

	sup, err := camera.Start(ctx, CameraOptions(cfg), logger)
	if err != nil {
		return fmt.Errorf("カメラの起動に失敗: %w", err)
	}
	defer func() {
		if cerr := sup.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	m := metrics.New()
	policy := retention.Policy{
		MaxFrames:    cfg.Retention.MaxFrames,
		PollInterval: cfg.Retention.PollInterval,
	}
	janitor := retention.NewManager(store, policy, logger, m)
	srv := server.New(cfg, server.Deps{
		Selector: frames.NewSelector(store, cfg.Frames.AtomicWrites),
		Counter:  store,
		Camera:   sup,
		Policy:   policy,
		Metrics:  m,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(gctx, "retention", janitor.Run))
	g.Go(guard(gctx, "server", srv.Start))

	return g.Wait()
}

// guard はゴルーチン内のpanicをエラーに変換し、Run の defer が必ず実行されるようにする
func guard(ctx context.Context, name string, fn func(context.Context) error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s でpanicが発生しました: %v", name, r)
			}
		}()
		return fn(ctx)
	}
}

// CameraOptions は設定からキャプチャプロセスの起動オプションを作る
func CameraOptions(cfg *config.Config) camera.Options {
	return camera.Options{
		Preset:  camera.Preset(cfg.Camera.Preset),
		Command: cfg.Camera.Command,
		Args:    cfg.Camera.Args,
		Device:  cfg.Camera.Device,
		Settings: camera.Settings{
			FPS:     cfg.Camera.FPS,
			Width:   cfg.Camera.Width,
			Height:  cfg.Camera.Height,
			Quality: cfg.Camera.Quality,
		},
		Output: filepath.Join(cfg.Frames.Dir, cfg.Frames.NameFormat),
		WarmUp: cfg.Camera.WarmUp,
	}
}

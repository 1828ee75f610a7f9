package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"livecam/internal/camera"
	"livecam/internal/config"
	"livecam/internal/frames"
	"livecam/internal/metrics"
	"livecam/internal/retention"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間
const shutdownTimeout = 5 * time.Second

// FrameSelector は配信するフレームを選んで開く
type FrameSelector interface {
	OpenServable(ctx context.Context) (frames.Frame, io.ReadCloser, error)
}

// FrameCounter はフレーム数を返す
type FrameCounter interface {
	Count(ctx context.Context) (int, error)
}

// CameraInfo はキャプチャプロセスの状態を返す
type CameraInfo interface {
	Info() camera.Info
}

// Deps はServerが使うコンポーネント
type Deps struct {
	Selector FrameSelector
	Counter  FrameCounter
	Camera   CameraInfo // nil ならステータスにカメラ情報を含めない
	Policy   retention.Policy
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "server"),
		engine: gin.New(),
	}
	// 末尾スラッシュ付きのパスもリダイレクトせず未知のパスとして扱う
	s.engine.RedirectTrailingSlash = false
	s.setupRoutes()

	// シャットダウン時にストリーミング中のリクエストも終了させる
	baseCtx, cancel := context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	s.httpServer.RegisterOnShutdown(cancel)

	return s
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	s.engine.Use(s.requestID(), s.recovery(), s.accessLog())

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/image", s.handleImage)
	s.engine.GET("/stream", s.handleStream)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/api/status", s.handleStatus)
	s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	// 未知のパスは空のレスポンスを返す
	s.engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

// Start はサーバーを起動し、ctx が終了するまでリクエストを処理する
// ctx の終了後はグレースフルにシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve は指定されたリスナーでリクエストを処理する
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)

	go func() {
		s.logger.Info("HTTPサーバーを起動しています", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}

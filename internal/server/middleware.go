package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// requestID はリクエストごとにIDを振り、そのIDを含むロガーをコンテキストに置く
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set(loggerKey, s.logger.With("request_id", id))
		c.Next()
	}
}

// recovery はリクエスト処理中のpanicを回復し、他のリクエストに影響させない
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.deps.Metrics.RequestPanics.Inc()
				requestLogger(c, s.logger).Error("RequestHandlingError: リクエスト処理中にpanicが発生しました。処理を継続します",
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r))
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// accessLog はリクエストの処理結果をデバッグログに記録する
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestLogger(c, s.logger).Debug("リクエストを処理しました",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(start))
	}
}

// requestLogger はリクエストに紐づいたロガーを返す
func requestLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"livecam/internal/frames"
)

// mjpegBoundary はMJPEGストリームのパート境界
const mjpegBoundary = "frame"

// handleIndex はインデックスページを返す
func (s *Server) handleIndex(c *gin.Context) {
	page := indexHTML
	if path := s.config.Server.IndexPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			requestLogger(c, s.logger).Error("インデックスページの読み込みに失敗しました", "path", path, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		page = data
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// handleImage は配信可能な最新フレームを返す
func (s *Server) handleImage(c *gin.Context) {
	frame, rc, err := s.deps.Selector.OpenServable(c.Request.Context())
	if err != nil {
		s.respondNoFrame(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Last-Modified", frame.ModTime.UTC().Format(http.TimeFormat))
	c.DataFromReader(http.StatusOK, frame.Size, "image/jpeg", rc, nil)

	s.deps.Metrics.FramesServed.WithLabelValues("image").Inc()
}

// respondNoFrame はフレームを返せなかったときのレスポンスを書く
func (s *Server) respondNoFrame(c *gin.Context, err error) {
	switch {
	case errors.Is(err, frames.ErrNotAvailable):
		s.deps.Metrics.FramesUnavailable.Inc()
		c.Status(http.StatusNoContent)
	case errors.Is(err, frames.ErrStoreUnavailable):
		s.deps.Metrics.FramesUnavailable.Inc()
		requestLogger(c, s.logger).Warn("フレームストアを利用できません", "error", err)
		c.Status(http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// クライアントが切断した
	default:
		requestLogger(c, s.logger).Error("フレームの取得に失敗しました", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

// handleStream はMJPEGストリームを配信する
func (s *Server) handleStream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(s.config.Server.StreamInterval)
	defer ticker.Stop()

	var last frames.Frame
	for {
		sent, err := s.writeStreamPart(c, last)
		if err != nil {
			requestLogger(c, s.logger).Debug("MJPEGストリームを終了します", "error", err)
			return
		}
		if sent.Name != "" {
			last = sent
		}

		select {
		case <-ctx.Done():
			// クライアントが切断された
			return
		case <-ticker.C:
		}
	}
}

// writeStreamPart は前回と異なるフレームがあれば1パート書き込む
// 書き込んだフレームを返す。書き込まなかった場合はゼロ値を返す
func (s *Server) writeStreamPart(c *gin.Context, last frames.Frame) (frames.Frame, error) {
	frame, rc, err := s.deps.Selector.OpenServable(c.Request.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return frames.Frame{}, err
		}
		// フレームが無い間は待つ
		return frames.Frame{}, nil
	}
	defer rc.Close()

	if frame.Name == last.Name && frame.ModTime.Equal(last.ModTime) {
		return frames.Frame{}, nil
	}

	w := c.Writer
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, frame.Size); err != nil {
		return frames.Frame{}, err
	}
	if _, err := io.Copy(w, rc); err != nil {
		return frames.Frame{}, err
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return frames.Frame{}, err
	}

	// バッファをフラッシュ
	w.Flush()
	s.deps.Metrics.FramesServed.WithLabelValues("stream").Inc()

	return frame, nil
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// statusResponse は /api/status のレスポンス
type statusResponse struct {
	Status    string        `json:"status"`
	Server    serverInfo    `json:"server"`
	Camera    any           `json:"camera,omitempty"`
	Frames    framesInfo    `json:"frames"`
	Retention retentionInfo `json:"retention"`
	Timestamp string        `json:"timestamp"`
}

type serverInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type framesInfo struct {
	Dir       string `json:"dir"`
	Count     int    `json:"count"`
	Available bool   `json:"available"`
}

type retentionInfo struct {
	MaxFrames    int    `json:"max_frames"`
	PollInterval string `json:"poll_interval"`
}

// handleStatus はステータス確認エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{
		Status: "running",
		Server: serverInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Frames: framesInfo{
			Dir: s.config.Frames.Dir,
		},
		Retention: retentionInfo{
			MaxFrames:    s.deps.Policy.MaxFrames,
			PollInterval: s.deps.Policy.PollInterval.String(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if s.deps.Camera != nil {
		resp.Camera = s.deps.Camera.Info()
	}

	count, err := s.deps.Counter.Count(c.Request.Context())
	if err != nil {
		requestLogger(c, s.logger).Warn("フレーム数の取得に失敗しました", "error", err)
		resp.Frames.Count = -1
	} else {
		resp.Frames.Count = count
		resp.Frames.Available = true
	}

	c.JSON(http.StatusOK, resp)
}

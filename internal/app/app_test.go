package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livecam/internal/camera"
	"livecam/internal/config"
	"livecam/internal/logging"
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Frames.Dir = dir
	cfg.Retention.MaxFrames = 3
	cfg.Retention.PollInterval = 20 * time.Millisecond
	cfg.Camera.Preset = "custom"
	cfg.Camera.Command = "sh"
	cfg.Camera.Args = []string{"-c", "echo $$ > " + filepath.Join(dir, "camera.pid") + "; exec sleep 30"}
	cfg.Camera.WarmUp = 100 * time.Millisecond
	return cfg
}

func TestRun_LifecycleAndRetention(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh が見つからないためスキップ")
	}

	dir := t.TempDir()
	cfg := testConfig(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, logging.Discard()) }()

	// カメラの代わりにフレームを書き込む
	for i := 1; i <= 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("img_%04d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))
		mtime := time.Now().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	require.Eventually(t, func() bool {
		matches, _ := filepath.Glob(filepath.Join(dir, "img_*.jpg"))
		return len(matches) == 3
	}, 3*time.Second, 20*time.Millisecond)

	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, "camera.pid"))
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run の停止がタイムアウトしました")
	}

	// キャプチャプロセスは終了・回収済み
	err := syscall.Kill(pid, 0)
	assert.True(t, errors.Is(err, syscall.ESRCH), "camera process still alive: %v", err)
}

func TestRun_CameraStartFailureAborts(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Camera.Command = "/nonexistent/raspistill"
	cfg.Camera.Args = nil

	err := Run(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "カメラの起動に失敗")
}

func TestGuard_RecoversPanic(t *testing.T) {
	fn := guard(context.Background(), "retention", func(context.Context) error {
		panic("disk on fire")
	})

	err := fn()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestCameraOptions(t *testing.T) {
	cfg := config.Default()
	opts := CameraOptions(cfg)

	assert.Equal(t, camera.PresetRaspistill, opts.Preset)
	assert.Equal(t, "/home/pi/ramfs/img_%04d.jpg", opts.Output)
	assert.Equal(t, 2*time.Second, opts.WarmUp)
	assert.Equal(t, 1920, opts.Settings.Width)
	assert.Equal(t, 10, opts.Settings.Quality)
}

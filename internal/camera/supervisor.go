package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// defaultWaitDelay は強制終了後に出力パイプの回収を待つ既定の上限
const defaultWaitDelay = 2 * time.Second

// Supervisor は1つのキャプチャプロセスを所有する
// Start で起動し、Close で強制終了して回収する
type Supervisor struct {
	command   Command
	cmd       *exec.Cmd
	logger    *slog.Logger
	startedAt time.Time

	// プロセス終了時にクローズされる
	done chan struct{}

	mu      sync.RWMutex
	waitErr error
	closing bool

	closeOnce sync.Once
	closeErr  error
}

// Start はキャプチャプロセスを起動し、ウォームアップが終わるまで待つ
//
// 起動に失敗した場合やウォームアップ中にプロセスが終了した場合はエラーを返す。
// ctx がウォームアップ中にキャンセルされた場合はプロセスを終了してから ctx.Err() を返す。
func Start(ctx context.Context, opts Options, logger *slog.Logger) (*Supervisor, error) {
	command, err := BuildCommand(opts)
	if err != nil {
		return nil, fmt.Errorf("キャプチャコマンドの組み立てに失敗: %w", err)
	}

	logger = logger.With("component", "camera")

	if opts.Preset == PresetFFmpeg {
		if err := CheckDevice(opts.Device); err != nil {
			return nil, err
		}
		if name := DeviceName(ctx, opts.Device); name != "" {
			logger.Info("キャプチャデバイスを検出しました", "device", opts.Device, "name", name)
		}
	}

	// ctx のキャンセルでは終了させない。終了は必ず Close で行う
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Stdout = &lineLogger{logger: logger, stream: "stdout"}
	cmd.Stderr = &lineLogger{logger: logger, stream: "stderr"}
	// シェル経由で起動された子孫プロセスもまとめて終了できるよう専用のプロセスグループにする
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("キャプチャプロセスの起動に失敗: %w", err)
	}

	s := &Supervisor{
		command:   command,
		cmd:       cmd,
		logger:    logger,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go s.wait()

	logger.Info("キャプチャプロセスを起動しました", "pid", cmd.Process.Pid, "command", command.String())

	if err := s.warmUp(ctx, opts.WarmUp); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// warmUp はウォームアップ時間だけ待つ
func (s *Supervisor) warmUp(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("キャプチャプロセスがウォームアップ中に終了しました: %w", s.exitError())
	}
}

// wait はプロセスの終了を待ち、結果を記録する
func (s *Supervisor) wait() {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.waitErr = err
	closing := s.closing
	s.mu.Unlock()

	close(s.done)

	if !closing {
		s.logger.Error("キャプチャプロセスが予期せず終了しました", "error", err)
	}
}

// Done はプロセスが終了するとクローズされるチャンネルを返す
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Close はプロセスを強制終了し、終了を待つ
// 何度呼んでも安全
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		if err := s.kill(); err != nil {
			s.closeErr = fmt.Errorf("キャプチャプロセスの強制終了に失敗: %w", err)
		}
		<-s.done

		s.logger.Info("キャプチャプロセスを停止しました", "pid", s.cmd.Process.Pid)
	})
	return s.closeErr
}

// kill はプロセスグループ全体に SIGKILL を送る
func (s *Supervisor) kill() error {
	pid := s.cmd.Process.Pid
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		// グループが既に無くても本体は念のため直接終了させる
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
	return err
}

// Running はプロセスが動作中かを返す
func (s *Supervisor) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Info はプロセスの状態を返す
func (s *Supervisor) Info() Info {
	info := Info{
		PID:       s.cmd.Process.Pid,
		Command:   s.command.String(),
		StartedAt: s.startedAt,
	}

	s.mu.RLock()
	closing := s.closing
	s.mu.RUnlock()

	switch {
	case s.Running():
		info.Status = StatusActive
		info.Uptime = time.Since(s.startedAt).Truncate(time.Second).String()
	case closing:
		info.Status = StatusInactive
	default:
		info.Status = StatusError
		if err := s.exitError(); err != nil {
			info.ExitError = err.Error()
		}
	}
	return info
}

func (s *Supervisor) exitError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.waitErr == nil {
		return errors.New("終了コード 0")
	}
	return s.waitErr
}

// lineLogger はプロセスの出力を1行ずつデバッグログに書き出す
type lineLogger struct {
	logger *slog.Logger
	stream string
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadBytes('\n')
		if err != nil {
			// 改行が来るまで残りを保持する
			rest := append([]byte(nil), line...)
			l.buf.Reset()
			l.buf.Write(rest)
			break
		}
		if text := bytes.TrimSpace(line); len(text) > 0 {
			l.logger.Debug(string(text), "stream", l.stream)
		}
	}
	return len(p), nil
}

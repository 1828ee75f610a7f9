// Package retention はフレームディレクトリの肥大化を防ぐクリーンアップループを提供する
//
// 一定間隔でフレームを新しい順に列挙し、上限を超えた古いフレームを削除する。
// 列挙や削除のエラーはログに記録するだけで、ループは止めない。
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"livecam/internal/frames"
	"livecam/internal/metrics"
)

// Store はクリーンアップに必要なフレームストアの操作
type Store interface {
	ListNewestFirst(ctx context.Context) ([]frames.Frame, error)
	Delete(frame frames.Frame) error
}

// Policy は保持ポリシー
type Policy struct {
	MaxFrames    int           // 保持する最大フレーム数
	PollInterval time.Duration // クリーンアップ間隔
}

// DefaultPolicy はデフォルトの保持ポリシーを返す
func DefaultPolicy() Policy {
	return Policy{
		MaxFrames:    20,
		PollInterval: 5 * time.Second,
	}
}

// Result は1回のクリーンアップの結果
type Result struct {
	Listed  int // 列挙したフレーム数
	Deleted int // 削除したフレーム数
	Failed  int // 削除に失敗したフレーム数
}

// Manager は保持ポリシーに従ってフレームを削除する
type Manager struct {
	store   Store
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewManager は新しいManagerを作成する
// m が nil ならメトリクスは記録しない
func NewManager(store Store, policy Policy, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   store,
		policy:  policy,
		logger:  logger.With("component", "retention"),
		metrics: m,
	}
}

// Policy は現在の保持ポリシーを返す
func (m *Manager) Policy() Policy {
	return m.policy
}

// Run は ctx が終了するまでクリーンアップを繰り返す
// 起動直後に1回実行し、前回の実行で残ったフレームも削除する
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("フレームのクリーンアップを開始します",
		"max_frames", m.policy.MaxFrames,
		"poll_interval", m.policy.PollInterval)

	ticker := time.NewTicker(m.policy.PollInterval)
	defer ticker.Stop()

	for {
		m.sweepAndLog(ctx)

		select {
		case <-ctx.Done():
			m.logger.Info("フレームのクリーンアップを停止しました")
			return nil
		case <-ticker.C:
		}
	}
}

// sweepAndLog は1回クリーンアップを実行し、エラーはログに記録して捨てる
func (m *Manager) sweepAndLog(ctx context.Context) {
	res, err := m.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.logger.Warn("フレームのクリーンアップに失敗しました。次回再試行します", "error", err)
		return
	}
	if res.Deleted > 0 || res.Failed > 0 {
		m.logger.Debug("古いフレームを削除しました",
			"listed", res.Listed,
			"deleted", res.Deleted,
			"failed", res.Failed)
	}
}

// Sweep は1回分のクリーンアップを実行する
//
// MaxFrames 番目（0始まり）以降の古いフレームを全て削除する。
// 1枚の削除に失敗しても残りの削除は続ける。
func (m *Manager) Sweep(ctx context.Context) (Result, error) {
	list, err := m.store.ListNewestFirst(ctx)
	if err != nil {
		m.countError("list")
		return Result{}, fmt.Errorf("フレーム一覧の取得に失敗: %w", err)
	}

	res := Result{Listed: len(list)}
	if len(list) <= m.policy.MaxFrames {
		m.recordStored(len(list))
		return res, nil
	}

	for _, frame := range list[m.policy.MaxFrames:] {
		if err := m.store.Delete(frame); err != nil {
			res.Failed++
			m.countError("delete")
			m.logger.Warn("フレームの削除に失敗しました", "frame", frame.Name, "error", err)
			continue
		}
		res.Deleted++
	}

	if m.metrics != nil {
		m.metrics.FramesDeleted.Add(float64(res.Deleted))
	}
	m.recordStored(res.Listed - res.Deleted)

	return res, nil
}

func (m *Manager) countError(op string) {
	if m.metrics != nil {
		m.metrics.RetentionErrors.WithLabelValues(op).Inc()
	}
}

func (m *Manager) recordStored(n int) {
	if m.metrics != nil {
		m.metrics.FramesStored.Set(float64(n))
	}
}

// Package logging はslogロガーの生成を担う
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New は標準出力に書き込む slog.Logger を返す
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter は指定された出力先に書き込む slog.Logger を返す
// format が "json" ならJSON、それ以外はテキスト形式
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel は文字列のログレベルを slog.Level に変換する
// 不明な値は info として扱う
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard は何も出力しないロガーを返す（テスト用）
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

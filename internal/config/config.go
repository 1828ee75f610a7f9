package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	Frames    FramesConfig    `yaml:"frames"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト

	// IndexPath が空でなければ埋め込みページの代わりにディスク上のHTMLを返す
	IndexPath string `yaml:"index_path"`

	// StreamInterval はMJPEGストリームでフレームを送る間隔
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// CameraConfig はキャプチャプロセスの設定
type CameraConfig struct {
	// Preset は "raspistill" / "ffmpeg" / "custom" のいずれか
	Preset string `yaml:"preset"`

	// Command と Args は Preset が "custom" のときに使う
	// Args 内の {output} は出力パターンに置換される
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	Device string `yaml:"device"` // ffmpeg プリセット用のデバイスパス (例: /dev/video0)
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`

	// Quality は raspistill の -q 値
	Quality int `yaml:"quality"`

	// WarmUp はプロセス起動後に出力を信用するまでの待ち時間
	WarmUp time.Duration `yaml:"warm_up"`
}

// FramesConfig はフレームディレクトリの設定
type FramesConfig struct {
	Dir string `yaml:"dir"` // フレームを書き込む一時ディレクトリ (ramfs)

	// NameFormat はキャプチャプロセスに渡す出力ファイル名 (printf形式)
	NameFormat string `yaml:"name_format"`

	// Pattern はフレームとして扱うファイル名のglobパターン
	Pattern string `yaml:"pattern"`

	// AtomicWrites はプロデューサーが一時名→renameで書き込む場合に true にする
	// true なら最新フレームをそのまま配信する
	AtomicWrites bool `yaml:"atomic_writes"`
}

// RetentionConfig はフレーム保持ポリシー
type RetentionConfig struct {
	MaxFrames    int           `yaml:"max_frames"`    // 保持する最大フレーム数
	PollInterval time.Duration `yaml:"poll_interval"` // クリーンアップ間隔
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // json / text
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           80,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   0, // ストリーミング用にタイムアウト無効化
			StreamInterval: 100 * time.Millisecond,
		},
		Camera: CameraConfig{
			Preset:  "raspistill",
			Device:  "/dev/video0",
			Width:   1920,
			Height:  1080,
			FPS:     30,
			Quality: 10,
			WarmUp:  2 * time.Second,
		},
		Frames: FramesConfig{
			Dir:        "/home/pi/ramfs",
			NameFormat: "img_%04d.jpg",
			Pattern:    "img_*.jpg",
		},
		Retention: RetentionConfig{
			MaxFrames:    20,
			PollInterval: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// デフォルト値 → YAMLファイル (path が空でなければ) → 環境変数 の順に上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Frames.Dir = getEnvOrDefault("LIVECAM_FRAME_DIR", c.Frames.Dir)
	c.Retention.MaxFrames = getEnvAsIntOrDefault("LIVECAM_MAX_FRAMES", c.Retention.MaxFrames)
	c.Retention.PollInterval = getEnvAsDurationOrDefault("LIVECAM_POLL_INTERVAL", c.Retention.PollInterval)
	c.Log.Level = getEnvOrDefault("LIVECAM_LOG_LEVEL", c.Log.Level)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.StreamInterval <= 0 {
		return fmt.Errorf("無効なストリーム間隔: %s", c.Server.StreamInterval)
	}

	switch c.Camera.Preset {
	case "raspistill", "ffmpeg":
	case "custom":
		if c.Camera.Command == "" {
			return fmt.Errorf("custom プリセットにはコマンドが必要です")
		}
	default:
		return fmt.Errorf("不明なカメラプリセット: %q", c.Camera.Preset)
	}
	if c.Camera.WarmUp < 0 {
		return fmt.Errorf("無効なウォームアップ時間: %s", c.Camera.WarmUp)
	}

	if c.Frames.Dir == "" {
		return fmt.Errorf("フレームディレクトリが設定されていません")
	}
	if c.Frames.Pattern == "" || c.Frames.NameFormat == "" {
		return fmt.Errorf("フレームのファイル名設定が不足しています")
	}

	if c.Retention.MaxFrames < 1 {
		return fmt.Errorf("無効な最大フレーム数: %d", c.Retention.MaxFrames)
	}
	if c.Retention.PollInterval <= 0 {
		return fmt.Errorf("無効なクリーンアップ間隔: %s", c.Retention.PollInterval)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("不明なログ形式: %q", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は環境変数を time.Duration として取得する
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

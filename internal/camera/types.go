package camera

import (
	"time"
)

// Status はキャプチャプロセスの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // プロセスは停止中
	StatusActive   Status = "active"   // プロセスは動作中
	StatusError    Status = "error"    // プロセスが予期せず終了した
)

// Preset はキャプチャコマンドの組み立て方を表す
type Preset string

const (
	PresetRaspistill Preset = "raspistill" // Raspberry Pi カメラ
	PresetFFmpeg     Preset = "ffmpeg"     // ffmpeg経由のV4L2デバイス
	PresetCustom     Preset = "custom"     // 任意のコマンド
)

// OutputPlaceholder はカスタムコマンドの引数内で出力パターンに置換される文字列
const OutputPlaceholder = "{output}"

// Settings はキャプチャの設定を表す
type Settings struct {
	FPS     int // フレームレート（ffmpeg）
	Width   int // 画像幅
	Height  int // 画像高さ
	Quality int // JPEG品質（raspistill の -q）
}

// Options はSupervisorの起動オプション
type Options struct {
	Preset   Preset
	Command  string   // PresetCustom のコマンド
	Args     []string // PresetCustom の引数
	Device   string   // PresetFFmpeg のデバイスパス
	Settings Settings

	// Output はキャプチャプロセスに渡す出力パターン（例: /home/pi/ramfs/img_%04d.jpg）
	Output string

	// WarmUp は起動後に出力を信用するまでの待ち時間
	WarmUp time.Duration

	// WaitDelay は強制終了後、出力パイプの回収を待つ上限
	WaitDelay time.Duration
}

// Info はキャプチャプロセスの状態
type Info struct {
	Status    Status    `json:"status"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	ExitError string    `json:"exit_error,omitempty"`
}

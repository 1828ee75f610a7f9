package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CheckDevice はV4L2デバイスがキャプチャに使えるかチェックする
func CheckDevice(device string) error {
	// デバイスファイルの存在確認
	info, err := os.Stat(device)
	if err != nil {
		return fmt.Errorf("デバイスが利用できません: %s: %w", device, err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("キャラクタデバイスではありません: %s", device)
	}

	// デバイスファイルの読み取り権限チェック
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("デバイスを開けません: %s: %w", device, err)
	}
	_ = file.Close()

	return nil
}

// DeviceName はv4l2-ctlを使ってデバイスの表示名を取得する
// 取得できなければ空文字を返す
func DeviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return parseCardType(string(output))
}

// parseCardType は v4l2-ctl --info の出力から "Card type" の値を取り出す
func parseCardType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

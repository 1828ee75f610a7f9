package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// raspistillPath は raspistill の既定パス
const raspistillPath = "/usr/bin/raspistill"

// Command は起動するキャプチャコマンド
type Command struct {
	Path string
	Args []string
}

// String はログ用にコマンドラインを返す
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// BuildCommand はプリセットに従ってキャプチャコマンドを組み立てる
func BuildCommand(opts Options) (Command, error) {
	if opts.Output == "" {
		return Command{}, fmt.Errorf("出力パターンが指定されていません")
	}

	switch opts.Preset {
	case PresetRaspistill, "":
		return Command{
			Path: raspistillPath,
			Args: []string{
				"-w", strconv.Itoa(opts.Settings.Width),
				"-h", strconv.Itoa(opts.Settings.Height),
				"-q", strconv.Itoa(opts.Settings.Quality),
				"-e", "jpg",
				"-t", "999999999999999999", // 可能な限り撮影を続ける
				"-tl", "0", // 最速で撮影（通常30-40msに1枚）
				"-o", opts.Output,
			},
		}, nil

	case PresetFFmpeg:
		if opts.Device == "" {
			return Command{}, fmt.Errorf("ffmpeg プリセットにはデバイスが必要です")
		}
		return Command{
			Path: "ffmpeg",
			Args: []string{
				"-hide_banner",
				"-nostdin",
				"-loglevel", "warning",
				"-f", "v4l2",
				"-video_size", fmt.Sprintf("%dx%d", opts.Settings.Width, opts.Settings.Height),
				"-framerate", strconv.Itoa(opts.Settings.FPS),
				"-i", opts.Device,
				"-q:v", "3",
				"-f", "image2",
				opts.Output,
			},
		}, nil

	case PresetCustom:
		if opts.Command == "" {
			return Command{}, fmt.Errorf("custom プリセットにはコマンドが必要です")
		}
		args := make([]string, len(opts.Args))
		for i, arg := range opts.Args {
			args[i] = strings.ReplaceAll(arg, OutputPlaceholder, opts.Output)
		}
		return Command{Path: opts.Command, Args: args}, nil

	default:
		return Command{}, fmt.Errorf("不明なプリセット: %q", opts.Preset)
	}
}

package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultPattern はフレームとして扱うファイル名の既定パターン
const DefaultPattern = "img_*.jpg"

// Frame はキャプチャされた1枚の静止画
// 画像データは保持せず、必要になったときに Store.Open で読む
type Frame struct {
	Name    string    // ファイル名 (例: img_0042.jpg)
	Path    string    // フルパス
	ModTime time.Time // 最終更新時刻
	Size    int64     // バイト数
}

// Store はフレームディレクトリの読み取りと削除を提供する
type Store struct {
	dir     string
	pattern string
}

// NewStore は新しいStoreを作成する
// pattern が空なら DefaultPattern を使う
func NewStore(dir, pattern string) *Store {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Store{
		dir:     dir,
		pattern: pattern,
	}
}

// Dir はフレームディレクトリのパスを返す
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir はフレームディレクトリが無ければ作成する
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("フレームディレクトリの作成に失敗: %w", err)
	}
	return nil
}

// ListNewestFirst はフレームを更新時刻の降順で返す
// 同じ更新時刻のフレームはファイル名の降順で並べる
func (s *Store) ListNewestFirst(ctx context.Context) ([]Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, s.dir, err)
	}

	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(s.pattern, entry.Name()); !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// 列挙後に削除されたファイルは無視する
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, entry.Name(), err)
		}

		frames = append(frames, Frame{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sortNewestFirst(frames)
	return frames, nil
}

// Count はフレーム数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	frames, err := s.ListNewestFirst(ctx)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

// Delete はフレームを削除する
// 既に存在しないフレームの削除はエラーにしない
func (s *Store) Delete(frame Frame) error {
	err := os.Remove(frame.Path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrDeleteFailed, frame.Name, err)
}

// Open はフレームを読み込み用に開く
// 既に削除されていれば ErrFrameGone を返す
func (s *Store) Open(frame Frame) (io.ReadCloser, error) {
	f, err := os.Open(frame.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFrameGone, frame.Name)
		}
		return nil, fmt.Errorf("フレーム %s のオープンに失敗: %w", frame.Name, err)
	}
	return f, nil
}

func sortNewestFirst(frames []Frame) {
	sort.Slice(frames, func(i, j int) bool {
		if !frames[i].ModTime.Equal(frames[j].ModTime) {
			return frames[i].ModTime.After(frames[j].ModTime)
		}
		return frames[i].Name > frames[j].Name
	})
}

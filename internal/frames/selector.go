package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// Lister は新しい順のフレーム一覧を返す
type Lister interface {
	ListNewestFirst(ctx context.Context) ([]Frame, error)
}

// Opener はフレームを読み込み用に開く
type Opener interface {
	Open(frame Frame) (io.ReadCloser, error)
}

// Source は Selector が必要とするフレームストアの操作
type Source interface {
	Lister
	Opener
}

// Selector は配信してよい最新フレームを選ぶ
type Selector struct {
	source Source

	// atomic が true ならプロデューサーは一時名→renameで書き込むので最新フレームは完成している
	atomic bool
}

// NewSelector は新しいSelectorを作成する
func NewSelector(source Source, atomicWrites bool) *Selector {
	return &Selector{
		source: source,
		atomic: atomicWrites,
	}
}

// SelectServable は配信してよいフレームを返す
//
// 既定では最新のフレームは書き込み途中とみなし、2番目に新しいフレームを返す。
// フレームが足りなければ ErrNotAvailable を返す。
func (s *Selector) SelectServable(ctx context.Context) (Frame, error) {
	frames, err := s.source.ListNewestFirst(ctx)
	if err != nil {
		return Frame{}, err
	}

	index := 1
	if s.atomic {
		index = 0
	}
	if len(frames) <= index {
		return Frame{}, ErrNotAvailable
	}
	return frames[index], nil
}

// OpenServable は配信するフレームを選んで開く
//
// 選んだフレームが開く前に削除されていた場合は一度だけ選び直す。
// それでも開けなければ ErrNotAvailable を返す。
func (s *Selector) OpenServable(ctx context.Context) (Frame, io.ReadCloser, error) {
	const attempts = 2

	for i := 0; i < attempts; i++ {
		frame, err := s.SelectServable(ctx)
		if err != nil {
			return Frame{}, nil, err
		}

		rc, err := s.source.Open(frame)
		if err == nil {
			return refresh(frame, rc), rc, nil
		}
		if !errors.Is(err, ErrFrameGone) {
			return Frame{}, nil, err
		}
	}

	return Frame{}, nil, fmt.Errorf("%w: フレームが読み込み前に削除されました", ErrNotAvailable)
}

// refresh は開いたファイルの現在のサイズと更新時刻でフレーム情報を更新する
// 一覧取得後に書き込みが続いていても途中のサイズで切り詰めないようにする
func refresh(frame Frame, rc io.ReadCloser) Frame {
	st, ok := rc.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		return frame
	}
	info, err := st.Stat()
	if err != nil {
		return frame
	}
	frame.Size = info.Size()
	frame.ModTime = info.ModTime()
	return frame
}

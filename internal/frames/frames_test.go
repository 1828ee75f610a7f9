package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// writeFrames は img_0001.jpg から n 枚のフレームを、番号順に新しくなる更新時刻で作成する
func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		writeFrame(t, dir, fmt.Sprintf("img_%04d.jpg", i), baseTime.Add(time.Duration(i)*time.Second))
	}
}

func writeFrame(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg:"+name), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func names(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Name
	}
	return out
}

func TestStore_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)

	// パターンに合わないファイルとディレクトリは無視される
	writeFrame(t, dir, "img_0004.jpg~", baseTime.Add(time.Hour))
	writeFrame(t, dir, "notes.txt", baseTime.Add(time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img_9999.jpg"), 0o755))

	store := NewStore(dir, "")
	frames, err := store.ListNewestFirst(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"img_0003.jpg", "img_0002.jpg", "img_0001.jpg"}, names(frames))
	assert.Equal(t, filepath.Join(dir, "img_0003.jpg"), frames[0].Path)
	assert.Equal(t, int64(len("jpeg:img_0003.jpg")), frames[0].Size)
}

func TestStore_ListNewestFirst_TieBreakByName(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "img_0001.jpg", baseTime)
	writeFrame(t, dir, "img_0003.jpg", baseTime)
	writeFrame(t, dir, "img_0002.jpg", baseTime)

	frames, err := NewStore(dir, "").ListNewestFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"img_0003.jpg", "img_0002.jpg", "img_0001.jpg"}, names(frames))
}

func TestStore_ListNewestFirst_MTimeWinsOverName(t *testing.T) {
	dir := t.TempDir()
	// 連番が一周した後など、名前と時刻の順序が一致しない場合
	writeFrame(t, dir, "img_9999.jpg", baseTime)
	writeFrame(t, dir, "img_0000.jpg", baseTime.Add(time.Second))

	frames, err := NewStore(dir, "").ListNewestFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"img_0000.jpg", "img_9999.jpg"}, names(frames))
}

func TestStore_ListNewestFirst_Unavailable(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "not-mounted"), "")

	_, err := store.ListNewestFirst(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 2)
	store := NewStore(dir, "")

	frames, err := store.ListNewestFirst(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.Delete(frames[1]))
	_, err = os.Stat(frames[1].Path)
	assert.True(t, os.IsNotExist(err))

	// 2回目の削除もエラーにならない
	assert.NoError(t, store.Delete(frames[1]))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Delete_Failure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root では権限エラーを再現できない")
	}

	dir := t.TempDir()
	writeFrames(t, dir, 1)
	store := NewStore(dir, "")
	frames, err := store.ListNewestFirst(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err = store.Delete(frames[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteFailed))
}

func TestStore_Open(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)
	store := NewStore(dir, "")
	frames, err := store.ListNewestFirst(context.Background())
	require.NoError(t, err)

	rc, err := store.Open(frames[0])
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg:img_0001.jpg", string(data))

	require.NoError(t, os.Remove(frames[0].Path))
	_, err = store.Open(frames[0])
	assert.True(t, errors.Is(err, ErrFrameGone))
}

func TestSelector_SelectServable(t *testing.T) {
	testCases := []struct {
		name    string
		count   int
		atomic  bool
		want    string
		wantErr error
	}{
		{name: "空のストア", count: 0, wantErr: ErrNotAvailable},
		{name: "1枚だけ", count: 1, wantErr: ErrNotAvailable},
		{name: "2枚", count: 2, want: "img_0001.jpg"},
		{name: "5枚なら2番目に新しいフレーム", count: 5, want: "img_0004.jpg"},
		{name: "アトミック書き込みで空", count: 0, atomic: true, wantErr: ErrNotAvailable},
		{name: "アトミック書き込みなら最新", count: 1, atomic: true, want: "img_0001.jpg"},
		{name: "アトミック書き込みで5枚", count: 5, atomic: true, want: "img_0005.jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFrames(t, dir, tc.count)
			selector := NewSelector(NewStore(dir, ""), tc.atomic)

			frame, err := selector.SelectServable(context.Background())
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, frame.Name)
		})
	}
}

func TestSelector_SelectServable_StoreUnavailable(t *testing.T) {
	selector := NewSelector(NewStore(filepath.Join(t.TempDir(), "missing"), ""), false)

	_, err := selector.SelectServable(context.Background())
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestSelector_OpenServable(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)
	selector := NewSelector(NewStore(dir, ""), false)

	frame, rc, err := selector.OpenServable(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "img_0002.jpg", frame.Name)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:img_0002.jpg", string(data))
}

// goneSource は列挙の後に毎回フレームが削除される状況を再現する
type goneSource struct {
	*Store
	opens int
}

func (g *goneSource) Open(frame Frame) (io.ReadCloser, error) {
	g.opens++
	if err := os.Remove(frame.Path); err != nil {
		return nil, err
	}
	return g.Store.Open(frame)
}

func TestSelector_OpenServable_DeletedBeforeRead(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 5)
	source := &goneSource{Store: NewStore(dir, "")}
	selector := NewSelector(source, false)

	// 1回目は img_0004 が消え、選び直した img_0003 も消える
	_, rc, err := selector.OpenServable(context.Background())
	assert.Nil(t, rc)
	assert.True(t, errors.Is(err, ErrNotAvailable), "got %v", err)
	assert.Equal(t, 2, source.opens)
}

// flakySource は最初の1回だけ選んだフレームを削除する
type flakySource struct {
	*Store
	removed bool
}

func (f *flakySource) Open(frame Frame) (io.ReadCloser, error) {
	if !f.removed {
		f.removed = true
		if err := os.Remove(frame.Path); err != nil {
			return nil, err
		}
	}
	return f.Store.Open(frame)
}

func TestSelector_OpenServable_RetriesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 5)
	selector := NewSelector(&flakySource{Store: NewStore(dir, "")}, false)

	frame, rc, err := selector.OpenServable(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	// img_0004 が消えたので、選び直すと img_0003 が2番目に新しい
	assert.Equal(t, "img_0003.jpg", frame.Name)
}

// growingSource は一覧を返した直後に対象フレームへ追記する
type growingSource struct {
	*Store
	tail []byte
}

func (g *growingSource) ListNewestFirst(ctx context.Context) ([]Frame, error) {
	frames, err := g.Store.ListNewestFirst(ctx)
	if err != nil || len(frames) < 2 {
		return frames, err
	}
	f, err := os.OpenFile(frames[1].Path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Write(g.tail); err != nil {
		return nil, err
	}
	return frames, nil
}

func TestSelector_OpenServable_UsesSizeAtOpen(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3)
	source := &growingSource{Store: NewStore(dir, ""), tail: []byte(":rest")}

	frame, rc, err := NewSelector(source, false).OpenServable(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "img_0002.jpg", frame.Name)
	assert.Equal(t, "jpeg:img_0002.jpg:rest", string(data))
	assert.Equal(t, int64(len(data)), frame.Size)
}

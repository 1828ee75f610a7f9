package frames

import "errors"

var (
	// ErrStoreUnavailable はディレクトリが読めない（未マウント等）ことを表す。一時的なエラーとして扱う
	ErrStoreUnavailable = errors.New("フレームストアを利用できません")

	// ErrDeleteFailed は冪等でない理由（権限、I/O）で削除に失敗したことを表す
	ErrDeleteFailed = errors.New("フレームの削除に失敗しました")

	// ErrNotAvailable は配信できるフレームがまだ無いことを表す
	ErrNotAvailable = errors.New("配信可能なフレームがありません")

	// ErrFrameGone は列挙後にフレームが削除されていたことを表す
	ErrFrameGone = errors.New("フレームは既に削除されています")
)

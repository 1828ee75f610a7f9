// Package frames はキャプチャされたフレームを置く一時ディレクトリを扱う
//
// # 責務
// - ディレクトリ内のフレームを新しい順に列挙する
// - フレームの削除（冪等）
// - 配信してよいフレームの選択
//
// # 仕様
//   - フレームは更新時刻の降順、同時刻はファイル名の降順で並ぶ
//   - 最新のフレームは書き込み途中の可能性があるため、既定では2番目に新しいフレームを配信する
//   - ロックは持たない。作成・列挙・削除の原子性はファイルシステムに任せる
//   - 列挙と読み込みの間に削除されたフレームは ErrNotAvailable として扱う
package frames

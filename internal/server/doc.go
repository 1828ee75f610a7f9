// Package server は、フレームを配信するHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 最新フレームの配信、静的ページの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - インデックスページの配信
//   - 最新フレーム（JPEG）の配信
//   - MJPEGストリームの配信
//   - ヘルスチェック、ステータス、メトリクスの公開
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - リクエストごとに状態を持たない
//   - 配信可能なフレームが無い場合は 204 No Content を返す
//   - 未知のパスには空の 200 を返す
//   - 1つのリクエストでのpanicは回復してログに記録し、他のリクエストに影響させない
package server

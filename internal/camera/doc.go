// Package camera はカメラのキャプチャプロセスのライフサイクルを管理する
//
// # 責務
// - 外部キャプチャプログラム（raspistill / ffmpeg など）の起動
// - ウォームアップ待ち
// - 終了時のプロセス強制終了と回収
// - プロセスの標準エラー出力をログへ転送
//
// # 仕様
//   - キャプチャプロセスは連番のJPEGファイルを一時ディレクトリに書き込み続ける
//   - 1つのSupervisorが管理するプロセスは1つだけ
//   - Close は冪等。全ての終了経路で必ず呼ぶこと
//     raspistill はkillされずに取り残されるとカメラが異常状態になり、再起動が必要になる
//
// # 前提要件
//   - raspistill プリセット: Raspberry Pi カメラと /usr/bin/raspistill
//   - ffmpeg プリセット: ffmpeg と V4L2 デバイス
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera

// Package httpclient は稼働中のtrustgateサーバーを呼び出すHTTPクライアントを提供する。
//
// CLIのwhoami・tokenサブコマンドが使用する。
// 任意のヘッダーを付けて送信できるため、ゲートの振る舞いを手元から確認できる。
package httpclient

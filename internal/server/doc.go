// Package server はtrustgateのHTTPサーバーを提供する。
//
// 全リクエストはRecovery、リクエストログ、メトリクス、CORS、Header-Authゲート、
// Forwarded-Forゲートの順に通過してからルートに届く。404のフォールバックも同じゲートを通る。
//
// ルート:
//   - GET  /, /healthz, /hello, /hello/:name: 疎通確認
//   - GET  /whoami: ゲートが記録したユーザーとクライアントIP、受信ヘッダー
//   - POST /user, GET /user/:id: ユーザーの作成と取得
//   - POST /auth/token: 信頼済みヘッダーで認証されたユーザーへのJWT発行
//   - GET  /api/v1/me: JWTで認証されたユーザー自身の情報
//   - GET  /metrics: Prometheusメトリクス
package server

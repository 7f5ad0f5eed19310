// Package middleware はtrustgateのHTTPサーバーで使用するGinミドルウェアを提供する。
//
// 中心となるのは信頼済みピアからのヘッダーだけを受け入れる2つのゲートである。
//
//   - TrustedHeaderAuth: フォワード認証プロキシが付与したユーザーヘッダーを認証済みユーザーとして記録する。
//   - TrustedForwardedFor: プロキシが付与したX-Forwarded-ForをクライアントIPとして記録する。
//
// どちらのゲートも直接接続元IP（RemoteAddr）と設定だけで判定し、
// 検証済みの値はリクエスト単位のRequestFactsに一度だけ書き込む。
// ほかにJWT認証、パニックリカバリ、CORSのミドルウェアを含む。
package middleware

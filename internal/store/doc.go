// Package store はtrustgateのユーザーをSQLite（modernc.org/sqlite）に保存する。
//
// スキーマは埋め込まれたマイグレーションファイルで管理し、Open時に適用する。
package store

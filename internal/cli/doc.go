// Package cli はtrustgateコマンドのサブコマンドを実装する。
//
// Runは終了コードを返す。0は成功、1は実行時エラー、2は引数の誤り。
package cli

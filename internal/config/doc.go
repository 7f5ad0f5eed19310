// Package config はtrustgateのserveサブコマンドの設定を組み立てる。
//
// 既定値、YAML設定ファイル、環境変数（.envファイルを含む）、コマンドラインフラグの順に重ね、
// 後のものほど優先する。検証済みのゲート設定はGatesで取得する。
package config

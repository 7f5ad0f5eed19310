package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// 環境変数名。
const (
	EnvTrustedHeaderAuth        = "TRUSTED_HEADER_AUTH"
	EnvTrustedHeaderName        = "TRUSTED_HEADER_NAME"
	EnvTrustedProxy             = "TRUSTED_PROXY"
	EnvTrustedForwardedFor      = "TRUSTED_FORWARDED_FOR"
	EnvForwardedForHeaderName   = "FORWARDED_FOR_HEADER_NAME"
	EnvForwardedForTrustedProxy = "FORWARDED_FOR_TRUSTED_PROXY"
	EnvListen                   = "LISTEN_ADDR"
	EnvDatabasePath             = "DATABASE_PATH"
	EnvJWTSecret                = "JWT_SECRET"
	EnvCORSOrigins              = "CORS_ORIGINS"
	EnvConfigFile               = "TRUSTGATE_CONFIG"
)

// フラグ名。
const (
	FlagTrustedHeaderAuth        = "trusted-header-auth"
	FlagTrustedHeaderName        = "trusted-header-name"
	FlagTrustedProxy             = "trusted-proxy"
	FlagTrustedForwardedFor      = "trusted-forwarded-for"
	FlagForwardedForHeaderName   = "forwarded-for-header-name"
	FlagForwardedForTrustedProxy = "forwarded-for-trusted-proxy"
	FlagListen                   = "listen"
	FlagDatabase                 = "database"
	FlagJWTSecret                = "jwt-secret"
	FlagCORSOrigin               = "cors-origin"
	FlagConfig                   = "config"
	FlagEnvFile                  = "env-file"
)

// LookupFunc は環境変数を取得する。os.LookupEnvと同じ形。
type LookupFunc func(key string) (string, bool)

// RegisterFlags はserveサブコマンドの設定フラグを登録する。
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.Bool(FlagTrustedHeaderAuth, false,
		"信頼済みピアからのユーザーヘッダーを認証済みユーザーとして受け入れる (env "+EnvTrustedHeaderAuth+")")
	flags.String(FlagTrustedHeaderName, d.HeaderAuth.HeaderName,
		"ユーザーを表すヘッダー名 (env "+EnvTrustedHeaderName+")")
	flags.String(FlagTrustedProxy, d.HeaderAuth.TrustedProxy,
		"ヘッダーの送信を許可する直接接続元IP (env "+EnvTrustedProxy+")")
	flags.Bool(FlagTrustedForwardedFor, false,
		"信頼済みピアからのX-Forwarded-ForをクライアントIPとして受け入れる (env "+EnvTrustedForwardedFor+")")
	flags.String(FlagForwardedForHeaderName, d.ForwardedFor.HeaderName,
		"クライアントIPを表すヘッダー名 (env "+EnvForwardedForHeaderName+")")
	flags.String(FlagForwardedForTrustedProxy, "",
		"クライアントIPヘッダーの送信を許可する直接接続元IP。省略時は --"+FlagTrustedProxy+" の値 (env "+EnvForwardedForTrustedProxy+")")
	flags.String(FlagListen, d.Listen, "待ち受けアドレス (env "+EnvListen+")")
	flags.String(FlagDatabase, d.DatabasePath, "SQLiteデータベースファイル (env "+EnvDatabasePath+")")
	flags.String(FlagJWTSecret, "", "トークン署名用の秘密鍵。空の場合は /auth/token を無効にする (env "+EnvJWTSecret+")")
	flags.StringSlice(FlagCORSOrigin, nil, "CORSを許可するオリジン。複数指定可 (env "+EnvCORSOrigins+")")
	flags.String(FlagConfig, "", "YAML設定ファイル (env "+EnvConfigFile+")")
	flags.String(FlagEnvFile, DefaultEnvFile, "読み込む.envファイル")
}

// Load は既定値、YAMLファイル、環境変数、フラグの順に重ねて設定を組み立てる。
// 後に適用したものが優先される。.envファイルの値はプロセスの環境変数に無いキーだけを補う。
// 結果は検証しないため、呼び出し側でValidateを呼ぶこと。
func Load(flags *pflag.FlagSet, lookup LookupFunc) (Config, error) {
	cfg := Default()

	envFile, _ := flags.GetString(FlagEnvFile)
	dotenv, err := readEnvFile(envFile, flags.Changed(FlagEnvFile))
	if err != nil {
		return cfg, err
	}
	lookup = withFallback(lookup, dotenv)

	path, _ := flags.GetString(FlagConfig)
	if !flags.Changed(FlagConfig) {
		path, _ = lookup(EnvConfigFile)
	}
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		fc.apply(&cfg)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if err := applyFlags(&cfg, flags); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readEnvFile は.envファイルを読み込む。明示されていないファイルが無い場合は無視する。
func readEnvFile(path string, explicit bool) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(".envファイルの読み込みに失敗: %s: %w", path, err)
	}
	return values, nil
}

func withFallback(lookup LookupFunc, fallback map[string]string) LookupFunc {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvTrustedHeaderName, &cfg.HeaderAuth.HeaderName},
		{EnvTrustedProxy, &cfg.HeaderAuth.TrustedProxy},
		{EnvForwardedForHeaderName, &cfg.ForwardedFor.HeaderName},
		{EnvForwardedForTrustedProxy, &cfg.ForwardedFor.TrustedProxy},
		{EnvListen, &cfg.Listen},
		{EnvDatabasePath, &cfg.DatabasePath},
		{EnvJWTSecret, &cfg.JWTSecret},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvTrustedHeaderAuth, &cfg.HeaderAuth.Enabled},
		{EnvTrustedForwardedFor, &cfg.ForwardedFor.Enabled},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	if v, ok := lookup(EnvCORSOrigins); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

// applyFlags はコマンドラインで明示されたフラグだけを適用する。
func applyFlags(cfg *Config, flags *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{FlagTrustedHeaderName, &cfg.HeaderAuth.HeaderName},
		{FlagTrustedProxy, &cfg.HeaderAuth.TrustedProxy},
		{FlagForwardedForHeaderName, &cfg.ForwardedFor.HeaderName},
		{FlagForwardedForTrustedProxy, &cfg.ForwardedFor.TrustedProxy},
		{FlagListen, &cfg.Listen},
		{FlagDatabase, &cfg.DatabasePath},
		{FlagJWTSecret, &cfg.JWTSecret},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		v, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{FlagTrustedHeaderAuth, &cfg.HeaderAuth.Enabled},
		{FlagTrustedForwardedFor, &cfg.ForwardedFor.Enabled},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		v, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = v
	}

	if flags.Changed(FlagCORSOrigin) {
		origins, err := flags.GetStringSlice(FlagCORSOrigin)
		if err != nil {
			return err
		}
		cfg.CORSOrigins = splitList(strings.Join(origins, ","))
	}
	return nil
}


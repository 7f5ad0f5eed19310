package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/nao1215/trustgate/pkg/middleware"
)

const (
	// DefaultListen はサーバーの既定の待ち受けアドレス。
	DefaultListen = "127.0.0.1:3000"
	// DefaultDatabasePath はSQLiteファイルの既定のパス。
	DefaultDatabasePath = "trustgate.db"
	// DefaultEnvFile は既定で読み込む.envファイル。
	DefaultEnvFile = ".env"
)

var (
	// ErrInvalidHeaderName はヘッダー名がHTTPのトークンとして不正であることを表す。
	ErrInvalidHeaderName = errors.New("ヘッダー名が不正です")
	// ErrInvalidTrustedProxy は信頼済みピアがIPアドレスとして不正であることを表す。
	ErrInvalidTrustedProxy = errors.New("信頼済みピアのIPアドレスが不正です")
	// ErrInvalidBool は真偽値として解釈できない値であることを表す。
	ErrInvalidBool = errors.New("真偽値が不正です")
	// ErrInvalidListen は待ち受けアドレスが host:port 形式でないことを表す。
	ErrInvalidListen = errors.New("待ち受けアドレスが不正です")
)

// GateSettings は1つの信頼済みヘッダーゲートの未検証の設定。
type GateSettings struct {
	// Enabled はゲートを有効にするかどうか。
	Enabled bool
	// HeaderName は検査対象のヘッダー名。
	HeaderName string
	// TrustedProxy はヘッダーを受け入れる直接接続元IP。
	// Forwarded-Forゲートで空の場合はHeader-Authゲートの値を使う。
	TrustedProxy string
}

// Config はserveサブコマンドの設定。
type Config struct {
	// Listen はHTTPサーバーの待ち受けアドレス。
	Listen string
	// DatabasePath はユーザーを保存するSQLiteファイルのパス。
	DatabasePath string
	// JWTSecret はトークン署名用の秘密鍵。空の場合はトークン発行を無効にする。
	JWTSecret string
	// CORSOrigins はCORSを許可するオリジン。空の場合はCORSミドルウェアを使わない。
	CORSOrigins []string
	// HeaderAuth はHeader-Authゲートの設定。
	HeaderAuth GateSettings
	// ForwardedFor はForwarded-Forゲートの設定。
	ForwardedFor GateSettings
}

// Default は既定値で埋めたConfigを返す。
func Default() Config {
	return Config{
		Listen:       DefaultListen,
		DatabasePath: DefaultDatabasePath,
		HeaderAuth: GateSettings{
			HeaderName:   middleware.DefaultTrustedHeaderName,
			TrustedProxy: middleware.DefaultTrustedProxy.String(),
		},
		ForwardedFor: GateSettings{
			HeaderName: middleware.DefaultForwardedForHeaderName,
		},
	}
}

// Gates は設定を検証し、2つのゲート設定を返す。
// ヘッダー名と信頼済みピアは無効化されたゲートでも検証する。
func (c Config) Gates() (headerAuth, forwardedFor middleware.TrustedHeaderConfig, err error) {
	headerAuth, err = buildGate("trusted-header-name", "trusted-proxy", c.HeaderAuth)
	if err != nil {
		return headerAuth, forwardedFor, err
	}

	ff := c.ForwardedFor
	if strings.TrimSpace(ff.TrustedProxy) == "" {
		ff.TrustedProxy = c.HeaderAuth.TrustedProxy
	}
	forwardedFor, err = buildGate("forwarded-for-header-name", "forwarded-for-trusted-proxy", ff)
	return headerAuth, forwardedFor, err
}

// Validate は設定全体を検証する。
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidListen, c.Listen, err)
	}
	_, _, err := c.Gates()
	return err
}

func buildGate(headerField, proxyField string, s GateSettings) (middleware.TrustedHeaderConfig, error) {
	name := strings.TrimSpace(s.HeaderName)
	if !httpguts.ValidHeaderFieldName(name) {
		return middleware.TrustedHeaderConfig{}, fmt.Errorf("%s: %w: %q", headerField, ErrInvalidHeaderName, s.HeaderName)
	}
	proxy, err := ParseTrustedProxy(s.TrustedProxy)
	if err != nil {
		return middleware.TrustedHeaderConfig{}, fmt.Errorf("%s: %w", proxyField, err)
	}
	return middleware.TrustedHeaderConfig{
		Enabled:      s.Enabled,
		HeaderName:   name,
		TrustedProxy: proxy,
	}, nil
}

// ParseTrustedProxy は信頼済みピアのIPアドレスを解釈する。
// ホスト名やCIDR、ゾーン付きのアドレスは受け付けない。
func ParseTrustedProxy(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, s)
	}
	return addr.Unmap(), nil
}

// ParseBool は環境変数の真偽値を解釈する。
// true/1/yes/on と false/0/no/off を大文字小文字を区別せずに受け付ける。
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
	}
}

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

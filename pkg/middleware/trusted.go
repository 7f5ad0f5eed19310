package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultTrustedHeaderName はHeader-Authゲートの既定ヘッダー名。
	DefaultTrustedHeaderName = "X-Forwarded-User"
	// DefaultForwardedForHeaderName はForwarded-Forゲートの既定ヘッダー名。
	DefaultForwardedForHeaderName = "X-Forwarded-For"
)

// DefaultTrustedProxy は既定の信頼済みピア（ループバック）。
var DefaultTrustedProxy = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// TrustedHeaderConfig は信頼済みピアからのヘッダーを受け入れるゲートの設定。
// 起動時に一度だけ構築され、以降は読み取り専用で全リクエストから共有される。
type TrustedHeaderConfig struct {
	// Enabled はゲートが有効かどうか。無効時はヘッダーの存在自体を拒否する。
	Enabled bool
	// HeaderName は検査対象のヘッダー名。大文字小文字は区別しない。
	HeaderName string
	// TrustedProxy はヘッダーの送信を許可する唯一の直接接続元IP。
	TrustedProxy netip.Addr
}

// DisabledHeaderAuth は無効化されたHeader-Authゲート設定を返す。
func DisabledHeaderAuth() TrustedHeaderConfig {
	return TrustedHeaderConfig{
		HeaderName:   DefaultTrustedHeaderName,
		TrustedProxy: DefaultTrustedProxy,
	}
}

// DisabledForwardedFor は無効化されたForwarded-Forゲート設定を返す。
func DisabledForwardedFor() TrustedHeaderConfig {
	return TrustedHeaderConfig{
		HeaderName:   DefaultForwardedForHeaderName,
		TrustedProxy: DefaultTrustedProxy,
	}
}

// Outcome はゲートの判定結果を表す。
type Outcome int

const (
	// OutcomePass はリクエストを変更せずに次へ渡す。
	OutcomePass Outcome = iota
	// OutcomeAttach は検証済みの値をRequestFactsに記録して次へ渡す。
	OutcomeAttach
	// OutcomeForbidden は無効化中または信頼されていないピアからのヘッダーを拒否する。
	OutcomeForbidden
	// OutcomeUnauthorized は信頼済みピアから必須のIDが届かなかったことを表す。
	OutcomeUnauthorized
	// OutcomeBadRequest は信頼済みピアから不正な値が届いたことを表す。
	OutcomeBadRequest
)

// String はメトリクスのラベルに使う名前を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeAttach:
		return "attach"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Status は拒否時のHTTPステータスを返す。通過系の判定では0を返す。
func (o Outcome) Status() int {
	switch o {
	case OutcomeForbidden:
		return http.StatusForbidden
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	case OutcomeBadRequest:
		return http.StatusBadRequest
	default:
		return 0
	}
}

// DecisionRecorder はゲートの判定結果を記録する。
// pkg/metrics.Metrics がこれを実装する。
type DecisionRecorder interface {
	RecordGateDecision(gate, outcome string)
}

// gatePolicy は信頼済みピアからのリクエストに対するゲート固有の方針。
// 両ゲートの違いはここだけに閉じ込める。
type gatePolicy[T any] struct {
	// name はログとメトリクスで使うゲート名。
	name string
	// onMissing は信頼済みピアがヘッダーを付けなかった場合の判定。
	onMissing Outcome
	// accept はヘッダーの最初の値を検証する。成功時はOutcomeAttachを返す。
	accept func(value string) (Outcome, T)
	// attach は検証済みの値をRequestFactsに記録する。
	attach func(facts *RequestFacts, v T) error
}

// trustedPeerGate は信頼済みピアのヘッダーを扱う汎用ゲート。
type trustedPeerGate[T any] struct {
	cfg    TrustedHeaderConfig
	policy gatePolicy[T]
}

// decide はヘッダーと直接接続元IPから判定を下す。副作用を持たない。
func (g trustedPeerGate[T]) decide(header http.Header, peer netip.Addr) (Outcome, T) {
	var zero T
	present := len(header.Values(g.cfg.HeaderName)) > 0

	if !g.cfg.Enabled {
		if present {
			return OutcomeForbidden, zero
		}
		return OutcomePass, zero
	}

	if peer != g.cfg.TrustedProxy.Unmap() {
		if present {
			return OutcomeForbidden, zero
		}
		return OutcomePass, zero
	}

	if !present {
		return g.policy.onMissing, zero
	}
	return g.policy.accept(header.Get(g.cfg.HeaderName))
}

// handler はゲートをGinミドルウェアとして返す。
func (g trustedPeerGate[T]) handler(recorder DecisionRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		peer := PeerAddr(c.Request)
		outcome, v := g.decide(c.Request.Header, peer)
		if recorder != nil {
			recorder.RecordGateDecision(g.policy.name, outcome.String())
		}

		switch outcome {
		case OutcomePass:
			c.Next()
		case OutcomeAttach:
			if err := g.policy.attach(Facts(c), v); err != nil {
				slog.Error("リクエストへの値の記録に失敗しました", "gate", g.policy.name, "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Next()
		case OutcomeForbidden:
			g.warnForbidden(peer)
			abortWithStatusText(c, outcome.Status())
		default:
			slog.Debug("ゲートがリクエストを拒否しました",
				"gate", g.policy.name,
				"outcome", outcome.String(),
				"header", g.cfg.HeaderName,
				"peer", peer,
			)
			abortWithStatusText(c, outcome.Status())
		}
	}
}

// warnForbidden はなりすましの疑いがあるリクエストを警告ログに残す。
func (g trustedPeerGate[T]) warnForbidden(peer netip.Addr) {
	if !g.cfg.Enabled {
		slog.Warn("ゲートは無効化されていますが、ヘッダーが送信されました",
			"gate", g.policy.name,
			"header", g.cfg.HeaderName,
			"peer", peer,
		)
		return
	}
	slog.Warn("信頼されていないピアからのヘッダーを拒否しました",
		"gate", g.policy.name,
		"header", g.cfg.HeaderName,
		"peer", peer,
		"trusted_proxy", g.cfg.TrustedProxy,
	)
}

// PeerAddr はリクエストの直接接続元IPを返す。ヘッダーは一切参照しない。
// RemoteAddrを解釈できない場合はゼロ値を返し、どの信頼済みピアとも一致しない。
func PeerAddr(r *http.Request) netip.Addr {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.Unmap()
	}
	return netip.Addr{}
}

// firstToken はカンマ区切りの先頭要素を空白を除いて返す。
func firstToken(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// isVisibleASCII はvが表示可能なASCII文字とタブだけで構成されているかを返す。
func isVisibleASCII(v string) bool {
	for i := 0; i < len(v); i++ {
		if b := v[i]; b != '\t' && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}

func abortWithStatusText(c *gin.Context, status int) {
	c.Abort()
	c.String(status, http.StatusText(status))
}

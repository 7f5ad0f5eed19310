package middleware

import (
	"net/netip"

	"github.com/gin-gonic/gin"
)

// forwardedForPolicy はForwarded-Forゲートの方針。
// クライアントIPは任意の情報なので、信頼済みピアがヘッダーを付けなくても通す。
var forwardedForPolicy = gatePolicy[ClientIP]{
	name:      "trusted_forwarded_for",
	onMissing: OutcomePass,
	accept: func(value string) (Outcome, ClientIP) {
		addr, err := netip.ParseAddr(firstToken(value))
		if err != nil || addr.Zone() != "" {
			return OutcomeBadRequest, ClientIP{}
		}
		return OutcomeAttach, ClientIP{Addr: addr}
	},
	attach: func(facts *RequestFacts, ip ClientIP) error {
		return facts.SetClientIP(ip)
	},
}

// TrustedForwardedFor はプロキシが付与したクライアントIPヘッダーを検証するGinミドルウェアを返す。
// 信頼済みピアから届いたヘッダーの先頭要素をIPとしてパースし、失敗した場合は400を返す。
func TrustedForwardedFor(cfg TrustedHeaderConfig, recorder DecisionRecorder) gin.HandlerFunc {
	return trustedPeerGate[ClientIP]{cfg: cfg, policy: forwardedForPolicy}.handler(recorder)
}

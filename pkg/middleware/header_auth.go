package middleware

import "github.com/gin-gonic/gin"

// headerAuthPolicy はHeader-Authゲートの方針。
// 信頼済みピアがIDヘッダーを付けなかった場合や、値が表示可能なASCIIでない場合は401とする。
var headerAuthPolicy = gatePolicy[AuthenticatedIdentity]{
	name:      "trusted_header_auth",
	onMissing: OutcomeUnauthorized,
	accept: func(value string) (Outcome, AuthenticatedIdentity) {
		if !isVisibleASCII(value) {
			return OutcomeUnauthorized, AuthenticatedIdentity{}
		}
		token := firstToken(value)
		if token == "" {
			return OutcomeUnauthorized, AuthenticatedIdentity{}
		}
		return OutcomeAttach, AuthenticatedIdentity{Email: token}
	},
	attach: func(facts *RequestFacts, id AuthenticatedIdentity) error {
		return facts.SetIdentity(id)
	},
}

// TrustedHeaderAuth はフォワード認証プロキシが付与したユーザーヘッダーを検証するGinミドルウェアを返す。
//
//   - 無効時: ヘッダーがあれば403。
//   - 有効時: 信頼済みピア以外からヘッダーが届けば403。ヘッダーが無ければ匿名で通す。
//   - 信頼済みピアから: ヘッダーが無いか空、または表示可能なASCII以外を含むなら401。先頭のカンマ区切り要素をメールアドレスとして記録する。
//
// recorderはnilでもよい。
func TrustedHeaderAuth(cfg TrustedHeaderConfig, recorder DecisionRecorder) gin.HandlerFunc {
	return trustedPeerGate[AuthenticatedIdentity]{cfg: cfg, policy: headerAuthPolicy}.handler(recorder)
}

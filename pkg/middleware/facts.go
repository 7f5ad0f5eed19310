package middleware

import (
	"errors"
	"net/netip"

	"github.com/gin-gonic/gin"
)

// ErrFactAlreadySet は同じリクエストで値が二度記録されようとしたことを表す。
var ErrFactAlreadySet = errors.New("リクエストの値は既に記録されています")

// factsKey はGinコンテキストにRequestFactsを格納するためのキー。
const factsKey = "trustgate.request_facts"

// AuthenticatedIdentity は信頼済みヘッダーから得た認証済みユーザー。
type AuthenticatedIdentity struct {
	// Email はヘッダーの先頭要素。空文字列になることはない。
	Email string
}

// ClientIP は信頼済みプロキシが転送してきたクライアントIP。
type ClientIP struct {
	// Addr はパース済みのIPアドレス。
	Addr netip.Addr
}

// RequestFacts はゲートが検証済みの値を後段のハンドラへ渡すためのリクエスト単位の入れ物。
// 各値は一度だけ書き込める。リクエストをまたいで共有してはならない。
type RequestFacts struct {
	identity *AuthenticatedIdentity
	clientIP *ClientIP
}

// Identity は認証済みユーザーを返す。記録されていなければfalse。
func (f *RequestFacts) Identity() (AuthenticatedIdentity, bool) {
	if f == nil || f.identity == nil {
		return AuthenticatedIdentity{}, false
	}
	return *f.identity, true
}

// ClientIP はクライアントIPを返す。記録されていなければfalse。
func (f *RequestFacts) ClientIP() (ClientIP, bool) {
	if f == nil || f.clientIP == nil {
		return ClientIP{}, false
	}
	return *f.clientIP, true
}

// SetIdentity は認証済みユーザーを記録する。
func (f *RequestFacts) SetIdentity(id AuthenticatedIdentity) error {
	if f.identity != nil {
		return ErrFactAlreadySet
	}
	f.identity = &id
	return nil
}

// SetClientIP はクライアントIPを記録する。
func (f *RequestFacts) SetClientIP(ip ClientIP) error {
	if f.clientIP != nil {
		return ErrFactAlreadySet
	}
	f.clientIP = &ip
	return nil
}

// Facts はリクエストのRequestFactsを返す。未作成なら作成してコンテキストに格納する。
func Facts(c *gin.Context) *RequestFacts {
	if v, ok := c.Get(factsKey); ok {
		if f, ok := v.(*RequestFacts); ok {
			return f
		}
	}
	f := &RequestFacts{}
	c.Set(factsKey, f)
	return f
}

// GetIdentity はゲートが記録した認証済みユーザーを取得する。
func GetIdentity(c *gin.Context) (AuthenticatedIdentity, bool) {
	return Facts(c).Identity()
}

// GetClientIP はゲートが記録したクライアントIPを取得する。
func GetClientIP(c *gin.Context) (ClientIP, bool) {
	return Facts(c).ClientIP()
}

// EffectiveClientIP はクライアントIPを返す。
// Forwarded-Forゲートが値を記録していなければ直接接続元IPにフォールバックする。
func EffectiveClientIP(c *gin.Context) netip.Addr {
	if ip, ok := GetClientIP(c); ok {
		return ip.Addr
	}
	return PeerAddr(c.Request)
}

package server

import (
	"fmt"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/trustgate/pkg/middleware"
)

// unauthenticatedUser はwhoamiで認証済みユーザーがいない場合の表示。
const unauthenticatedUser = "<unauthenticated>"

// handleRoot は疎通確認用のハンドラを返す。
func (s *Server) handleRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

// handleHealthz はデータベースへの接続も含めたヘルスチェックのハンドラを返す。
func (s *Server) handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "unhealthy")
			return
		}
		c.String(http.StatusOK, "healthy")
	}
}

func (s *Server) handleHello() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "Hello!")
	}
}

func (s *Server) handleHelloName() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, fmt.Sprintf("Hello, %s!", c.Param("name")))
	}
}

// handleWhoami はゲートが記録した値と受信したヘッダーを返すハンドラを返す。
func (s *Server) handleWhoami() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := unauthenticatedUser
		if id, ok := middleware.GetIdentity(c); ok {
			user = id.Email
		}

		var b strings.Builder
		b.WriteString("identity:\n")
		fmt.Fprintf(&b, "user=%s\n", user)
		fmt.Fprintf(&b, "peer_ip=%s\n", formatAddr(middleware.PeerAddr(c.Request)))
		fmt.Fprintf(&b, "client_ip=%s\n", formatAddr(middleware.EffectiveClientIP(c)))
		b.WriteString("\nheaders:\n")
		writeHeaders(&b, c.Request)

		c.String(http.StatusOK, b.String())
	}
}

// writeHeaders はヘッダーを小文字の名前順に1行1値で書き出す。
// Goのhttp.RequestはHostをヘッダーから取り除くため、hostとして補う。
func writeHeaders(b *strings.Builder, r *http.Request) {
	type line struct{ name, value string }
	var lines []line
	if r.Host != "" {
		lines = append(lines, line{"host", r.Host})
	}
	for name, values := range r.Header {
		lower := strings.ToLower(name)
		for _, v := range values {
			lines = append(lines, line{lower, v})
		}
	}
	slices.SortStableFunc(lines, func(a, b line) int { return strings.Compare(a.name, b.name) })

	for _, l := range lines {
		v := l.value
		if !utf8.ValidString(v) {
			v = "<non-utf8>"
		}
		fmt.Fprintf(b, "%s: %s\n", l.name, v)
	}
}

func formatAddr(a netip.Addr) string {
	if !a.IsValid() {
		return "<unknown>"
	}
	return a.String()
}

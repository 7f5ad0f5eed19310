package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsMaxAge       = "600"
)

// CORS は許可リストにあるオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// extraHeaders にはプリフライトで許可する追加のリクエストヘッダーを渡す。
// オリジン "*" は全オリジンを許可する。
func CORS(allowedOrigins []string, extraHeaders ...string) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			originsSet[o] = struct{}{}
		}
	}
	_, wildcard := originsSet["*"]
	allowHeaders := strings.Join(append([]string{"Authorization", "Content-Type"}, extraHeaders...), ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		c.Writer.Header().Add("Vary", "Origin")
		_, allowed := originsSet[origin]
		if allowed || wildcard {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		// プリフライトは後段のゲートやハンドラーに渡さない。
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			if allowed || wildcard {
				c.Header("Access-Control-Allow-Methods", corsAllowMethods)
				c.Header("Access-Control-Allow-Headers", allowHeaders)
				c.Header("Access-Control-Max-Age", corsMaxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

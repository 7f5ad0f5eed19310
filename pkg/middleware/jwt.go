package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuerName はtrustgateが発行するトークンのiss。
	TokenIssuerName = "trustgate"
	// DefaultTokenTTL はトークンの既定の有効期間。
	DefaultTokenTTL = 24 * time.Hour

	tokenClaimsKey = "trustgate.token_claims"
)

// ErrEmptySecret は署名鍵が空であることを表す。
var ErrEmptySecret = errors.New("JWTシークレットが設定されていません")

// TokenClaims はtrustgateが発行するトークンのクレーム。
// SubjectにユーザーIDを格納する。
type TokenClaims struct {
	jwt.RegisteredClaims
	// Email はトークン発行時に信頼済みヘッダーから得たメールアドレス。
	Email string `json:"email"`
}

// UserID はトークンの持ち主のユーザーIDを返す。
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// TokenIssuer はHS256トークンの発行と検証を行う。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。secretが空の場合はErrEmptySecretを返す。
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue はユーザーIDとメールアドレスからトークンを生成する。
func (i *TokenIssuer) Issue(userID, email string) (string, error) {
	now := i.now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    TokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証してクレームを返す。
// HS256以外のアルゴリズムや他の発行者のトークンは拒否する。
func (i *TokenIssuer) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの検証に失敗: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("JWTトークンが無効です")
	}
	return claims, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、GetTokenClaimsでクレームを取得できる。
func JWTAuth(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := issuer.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(tokenClaimsKey, claims)
		c.Next()
	}
}

// GetTokenClaims はJWTAuthが検証したクレームを取得する。
func GetTokenClaims(c *gin.Context) (*TokenClaims, bool) {
	v, ok := c.Get(tokenClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*TokenClaims)
	return claims, ok
}

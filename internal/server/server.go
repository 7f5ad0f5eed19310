package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/trustgate/internal/store"
	"github.com/nao1215/trustgate/pkg/metrics"
	"github.com/nao1215/trustgate/pkg/middleware"
)

const (
	// readHeaderTimeout はリクエストヘッダー読み込みのタイムアウト。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 10 * time.Second
)

// Options はServerの構築に必要な設定と依存。
type Options struct {
	// HeaderAuth はHeader-Authゲートの設定。
	HeaderAuth middleware.TrustedHeaderConfig
	// ForwardedFor はForwarded-Forゲートの設定。
	ForwardedFor middleware.TrustedHeaderConfig
	// CORSOrigins はCORSを許可するオリジン。空ならCORSミドルウェアを使わない。
	CORSOrigins []string
	// JWTSecret はトークン署名用の秘密鍵。空ならトークン発行と/api/v1を無効にする。
	JWTSecret string
	// Store はユーザーストア。必須。
	Store *store.Store
	// Metrics はメトリクス。nilなら新しく生成する。
	Metrics *metrics.Metrics
	// AccessLog はリクエストログの出力先。nilならリクエストログを出さない。
	AccessLog io.Writer
}

// Server はtrustgateのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// store はユーザーストア。
	store *store.Store
	// metrics はPrometheusメトリクス。
	metrics *metrics.Metrics
	// issuer はトークンの発行と検証を行う。JWTシークレットが無い場合はnil。
	issuer *middleware.TokenIssuer
}

// NewServer は新しいServerを生成し、ミドルウェアとルートを設定する。
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("ユーザーストアが指定されていません")
	}

	s := &Server{
		router:  gin.New(),
		store:   opts.Store,
		metrics: opts.Metrics,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if opts.JWTSecret != "" {
		issuer, err := middleware.NewTokenIssuer(opts.JWTSecret, middleware.DefaultTokenTTL)
		if err != nil {
			return nil, err
		}
		s.issuer = issuer
	}

	// リダイレクトはグローバルミドルウェアより前に返されるため、
	// 未定義のパスはすべてゲートを通るNoRouteに落とす。
	s.router.RedirectTrailingSlash = false
	s.router.RedirectFixedPath = false

	// クライアントIPはForwarded-Forゲートだけが決める。
	s.router.ForwardedByClientIP = false
	if err := s.router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("信頼済みプロキシの設定に失敗: %w", err)
	}

	s.router.Use(middleware.Recovery())
	if opts.AccessLog != nil {
		s.router.Use(gin.LoggerWithWriter(opts.AccessLog))
	}
	s.router.Use(s.metrics.Middleware())
	if len(opts.CORSOrigins) > 0 {
		s.router.Use(middleware.CORS(opts.CORSOrigins, opts.HeaderAuth.HeaderName))
	}
	s.router.Use(middleware.TrustedHeaderAuth(opts.HeaderAuth, s.metrics))
	s.router.Use(middleware.TrustedForwardedFor(opts.ForwardedFor, s.metrics))

	s.setupRoutes()
	return s, nil
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot())
	s.router.GET("/healthz", s.handleHealthz())
	s.router.GET("/hello", s.handleHello())
	s.router.GET("/hello/", s.handleHello())
	s.router.GET("/hello/:name", s.handleHelloName())
	s.router.GET("/whoami", s.handleWhoami())
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.POST("/user", s.handleCreateUser())
	s.router.GET("/user/:id", s.handleGetUser())

	s.router.POST("/auth/token", s.handleIssueToken())

	api := s.router.Group("/api/v1")
	api.Use(s.requireIssuer())
	if s.issuer != nil {
		api.Use(middleware.JWTAuth(s.issuer))
	}
	{
		api.GET("/me", s.handleGetCurrentUser())
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
}

// Serve はlnでHTTPサーバーを起動し、ctxが終了したらグレースフルシャットダウンする。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが異常終了しました: %w", err)
	case <-ctx.Done():
		slog.Info("シャットダウンを開始します")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("シャットダウンに失敗: %w", err)
		}
		return nil
	}
}

// ListenAndServe はaddrで待ち受けてServeを呼ぶ。待ち受けに成功するとreadyにアドレスを渡す。
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%s での待ち受けに失敗: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr())
	}
	return s.Serve(ctx, ln)
}

package cli

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nao1215/trustgate/internal/config"
	"github.com/nao1215/trustgate/internal/server"
	"github.com/nao1215/trustgate/internal/store"
	"github.com/nao1215/trustgate/pkg/metrics"
	"github.com/nao1215/trustgate/pkg/middleware"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "HTTP APIサーバーを起動する",
		Long: "HTTP APIサーバーを起動します。設定はフラグ、環境変数、YAMLファイル、既定値の順に優先されます。\n" +
			"SIGINTまたはSIGTERMを受け取るとグレースフルシャットダウンします。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags(), a.lookupEnv)
	if err != nil {
		return failure("設定の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return failure("設定が不正です: %w", err)
	}
	headerAuth, forwardedFor, err := cfg.Gates()
	if err != nil {
		return failure("設定が不正です: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return failure("データベースの初期化に失敗: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("データベースのクローズに失敗", "error", err)
		}
	}()

	gin.SetMode(ginMode(a.level))
	srv, err := server.NewServer(server.Options{
		HeaderAuth:   headerAuth,
		ForwardedFor: forwardedFor,
		CORSOrigins:  cfg.CORSOrigins,
		JWTSecret:    cfg.JWTSecret,
		Store:        st,
		Metrics:      metrics.New(),
		AccessLog:    a.stderr,
	})
	if err != nil {
		return failure("サーバーの初期化に失敗: %w", err)
	}

	a.printGateSummary(headerAuth, forwardedFor)
	if cfg.JWTSecret == "" {
		slog.Info("JWTシークレットが未設定のため /auth/token と /api/v1 は無効です")
	}

	err = srv.ListenAndServe(ctx, cfg.Listen, func(addr net.Addr) {
		fmt.Fprintf(a.stdout, "サーバーを起動します: http://%s\n", addr)
		slog.Info("サーバーを起動しました", "addr", addr.String(), "database", cfg.DatabasePath)
	})
	if err != nil {
		return failure("サーバーエラー: %w", err)
	}
	slog.Info("サーバーを停止しました")
	return nil
}

func (a *app) printGateSummary(headerAuth, forwardedFor middleware.TrustedHeaderConfig) {
	if headerAuth.Enabled {
		fmt.Fprintf(a.stdout, "信頼済みユーザーヘッダーを有効化: header=%q trusted_proxy=%s\n",
			headerAuth.HeaderName, headerAuth.TrustedProxy)
	}
	if forwardedFor.Enabled {
		fmt.Fprintf(a.stdout, "信頼済みForwarded-Forを有効化: header=%q trusted_proxy=%s\n",
			forwardedFor.HeaderName, forwardedFor.TrustedProxy)
	}
}

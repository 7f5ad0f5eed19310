package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/http/httpguts"

	"github.com/nao1215/trustgate/internal/config"
	"github.com/nao1215/trustgate/pkg/httpclient"
	"github.com/nao1215/trustgate/pkg/middleware"
)

// defaultServerURL は接続先サーバーの既定のURL。
var defaultServerURL = "http://" + config.DefaultListen

func (a *app) newWhoamiCommand() *cobra.Command {
	var (
		serverURL string
		headers   []string
	)
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "起動中のサーバーの /whoami を取得して表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := headerOptions(headers)
			if err != nil {
				return err
			}
			body, err := httpclient.New(serverURL, opts...).GetText(cmd.Context(), "/whoami")
			if err != nil {
				return failure("whoamiの取得に失敗: %w", err)
			}
			fmt.Fprint(a.stdout, body)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "接続先サーバーのURL")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "付与するヘッダー (\"Name: value\")。複数指定可")
	return cmd
}

// issuedToken はPOST /auth/tokenのレスポンス。
type issuedToken struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (a *app) newTokenCommand() *cobra.Command {
	var (
		serverURL  string
		email      string
		headerName string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "信頼済みユーザーヘッダーを付けて /auth/token からJWTを取得する",
		Long: "信頼済みプロキシの代わりにユーザーヘッダーを付けて /auth/token を呼び出し、発行されたJWTを表示します。\n" +
			"サーバー側で --trusted-header-auth が有効で、このホストが信頼済みピアである必要があります。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return usageError("--as にメールアドレスを指定してください")
			}
			if !httpguts.ValidHeaderFieldName(headerName) {
				return usageError("ヘッダー名が不正です: %q", headerName)
			}

			client := httpclient.New(serverURL, httpclient.WithHeader(headerName, email))
			var resp issuedToken
			if err := client.PostJSON(cmd.Context(), "/auth/token", nil, &resp); err != nil {
				return failure("トークンの取得に失敗: %w", err)
			}
			fmt.Fprintln(a.stdout, resp.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "接続先サーバーのURL")
	cmd.Flags().StringVar(&email, "as", "", "認証済みユーザーとして送るメールアドレス")
	cmd.Flags().StringVar(&headerName, "header-name", middleware.DefaultTrustedHeaderName, "ユーザーヘッダー名")
	return cmd
}

// headerOptions は "Name: value" 形式のヘッダー指定をクライアントのオプションに変換する。
func headerOptions(headers []string) ([]httpclient.Option, error) {
	opts := make([]httpclient.Option, 0, len(headers))
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, usageError("ヘッダーの指定が不正です: %q (\"Name: value\" 形式)", h)
		}
		opts = append(opts, httpclient.WithHeader(name, value))
	}
	return opts, nil
}

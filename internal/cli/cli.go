package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/trustgate/internal/config"
)

// Name はコマンド名。
const Name = "trustgate"

// Version はビルド時に -ldflags "-X" で上書きされるバージョン。
var Version = "dev"

// 終了コード。
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// codeError は終了コードを伴うエラー。
// errがnilの場合はメッセージを出力せずに終了コードだけを返す。
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *codeError) Unwrap() error { return e.err }

// failure は実行時エラーとして終了コード1を返すエラーを作る。
func failure(format string, args ...any) error {
	return &codeError{code: exitError, err: fmt.Errorf(format, args...)}
}

// usageError は引数の誤りとして終了コード2を返すエラーを作る。
func usageError(format string, args ...any) error {
	return &codeError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// app は1回のコマンド実行に必要な入出力と環境。
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv config.LookupFunc
	// level は解決済みのログレベル。
	level slog.Level
}

// Run は引数を解釈してサブコマンドを実行し、終了コードを返す。
// argsにはプログラム名を含めない。
func Run(args []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), args, stdout, stderr)
}

// RunContext はctxを使ってRunと同じ処理を行う。serveはctxの終了でも停止する。
func RunContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, lookupEnv: os.LookupEnv}
	return a.run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.newRootCommand()
	// nilを渡すとcobraはos.Argsを読むため、空のスライスにする。
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ce *codeError
	if errors.As(err, &ce) {
		if ce.err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", ce.err)
		}
		return ce.code
	}
	// cobra自身の引数解析エラー。
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	fmt.Fprintf(a.stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	return exitUsage
}

func (a *app) newRootCommand() *cobra.Command {
	var (
		logLevel string
		verbose  bool
	)

	root := &cobra.Command{
		Use:           Name,
		Short:         "信頼済みヘッダーゲートを備えたHTTP APIサーバー",
		Long:          "trustgate は信頼済みプロキシからのユーザーヘッダーとクライアントIPヘッダーだけを受け入れるHTTP APIサーバーです。",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogging(logLevel, verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&logLevel, "log", "", "ログレベル (trace, debug, info, warn, error)。環境変数 "+EnvLogLevel+" より優先する")
	pf.BoolVarP(&verbose, "verbose", "v", false, "ログレベルをdebugにする")

	root.AddCommand(
		a.newHelloCommand(),
		a.newCompletionsCommand(),
		a.newServeCommand(),
		a.newWhoamiCommand(),
		a.newTokenCommand(),
	)
	return root
}

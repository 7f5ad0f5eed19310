// trustgateのエントリポイント。
// 信頼済みプロキシからのユーザーヘッダーとクライアントIPヘッダーだけを受け入れるHTTP APIサーバーと、
// その動作を確認するためのクライアントコマンドを提供する。
package main

import (
	"os"

	"github.com/nao1215/trustgate/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}

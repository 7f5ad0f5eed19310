package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// unknownUser は名前を決められない場合の表示。
const unknownUser = "<unknown>"

func (a *app) newHelloCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hello [NAME]",
		Short: "挨拶を表示する",
		Long:  "NAMEに挨拶し、カレントディレクトリを表示します。NAMEを省略すると環境変数USERまたはUSERNAMEを使います。",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			}
			if name == "" {
				name = a.currentUser()
			}
			fmt.Fprintf(a.stdout, "Hello, %s!\n", name)

			wd, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(a.stderr, "カレントディレクトリの取得に失敗: %v\n", err)
				return nil
			}
			fmt.Fprintf(a.stdout, "Current working dir: %s\n", wd)
			return nil
		},
	}
}

func (a *app) currentUser() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v, ok := a.lookupEnv(key); ok && v != "" {
			return v
		}
	}
	return unknownUser
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var supportedShells = []string{"bash", "zsh", "fish"}

func (a *app) newCompletionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "completions [bash|zsh|fish]",
		Short:     "シェル補完スクリプトを出力する",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: supportedShells,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				a.printCompletionInstructions()
				return &codeError{code: exitError}
			}

			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(a.stdout, true)
			case "zsh":
				return root.GenZshCompletion(a.stdout)
			case "fish":
				return root.GenFishCompletion(a.stdout, true)
			default:
				return usageError("未対応のシェルです: %q (bash, zsh, fish)", args[0])
			}
		},
	}
}

// printCompletionInstructions はシェル補完の有効化手順を標準エラー出力に書く。
func (a *app) printCompletionInstructions() {
	w := a.stderr
	fmt.Fprintf(w, "### %s のタブ補完を有効にする手順\n\n", Name)
	fmt.Fprintln(w, "### Bash (~/.bashrc に追加)")
	fmt.Fprintf(w, "  source <(%s completions bash)\n\n", Name)
	fmt.Fprintln(w, "### エイリアス (例: 'h') にも補完を効かせる場合")
	fmt.Fprintf(w, "  alias h=%s\n", Name)
	fmt.Fprintf(w, "  complete -o default -F __start_%s h\n\n", Name)
	fmt.Fprintln(w, "### Fish (~/.config/fish/config.fish に追加)")
	fmt.Fprintf(w, "  %s completions fish | source\n\n", Name)
	fmt.Fprintln(w, "### Zsh (~/.zshrc に追加)")
	fmt.Fprintf(w, "  autoload -U compinit; compinit; source <(%s completions zsh)\n", Name)
}

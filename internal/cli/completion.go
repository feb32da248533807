package cli

import (
	"github.com/spf13/cobra"
)

func newCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for docwatch.

Besides command and flag names, the script completes document arguments
of watch and render with files the built-in converters recognise
(markdown, md, mdown, mkd, txt, text) and --format with the known
format names:

  $ docwatch watch do<TAB>        # completes demo.md, docs/
  $ docwatch render --format <TAB> # markdown  text

Bash:
  $ source <(docwatch completion bash)
  # make it permanent (Linux)
  $ docwatch completion bash > /etc/bash_completion.d/docwatch

Zsh:
  # once, if completion is not enabled yet
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ docwatch completion zsh > "${fpath[1]}/_docwatch"

Fish:
  $ docwatch completion fish > ~/.config/fish/completions/docwatch.fish

PowerShell:
  PS> docwatch completion powershell | Out-String | Invoke-Expression
`,
		// Override parent PersistentPreRunE: completion needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}

			return nil
		},
	}

	return cmd
}

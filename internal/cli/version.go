package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docwatch/internal/render"
	"github.com/hupe1980/docwatch/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		jsonOutput  bool
		shortOutput bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print which docwatch build is running and the markup formats it can
render. Release builds report the tagged version; binaries installed with
"go install" report the module version and VCS revision recorded by the
Go toolchain.

Use --short for just "docwatch <version>", or --json for scripts.`,
		Args: cobra.NoArgs,
		// Override parent PersistentPreRunE: version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput && shortOutput {
				return &ExitError{Code: 2, Err: fmt.Errorf("--json and --short are mutually exclusive")}
			}

			info := version.GetInfo()
			info.Formats = render.DefaultRegistry().Formats()

			w := cmd.OutOrStdout()

			switch {
			case shortOutput:
				_, err := fmt.Fprintln(w, info.Short())

				return err
			case jsonOutput:
				j, err := info.JSON()
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(w, j)

				return err
			}

			_, err := fmt.Fprintf(w, "%s\nformats: %s\n", info.String(), strings.Join(info.Formats, ", "))

			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "print only the program name and version")

	return cmd
}

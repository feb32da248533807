package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docwatch/internal/config"
	"github.com/hupe1980/docwatch/internal/render"
)

// viewerOptions are the rendering flags shared by watch and render.
type viewerOptions struct {
	format string
}

func registerViewerFlags(cmd *cobra.Command, opts *viewerOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "", "force a markup format instead of detecting it from the file extension (markdown, text)")
	f.String("theme", config.DefaultTheme, "syntax highlighting theme for code blocks")

	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
}

// completeDocuments completes a single document argument with files the
// built-in converters recognise. Extension aliases from the config file are
// not applied because completion runs without loading configuration.
func completeDocuments(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	return render.DefaultRegistry().Extensions(), cobra.ShellCompDirectiveFilterFileExt
}

func completeFormats(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return render.DefaultRegistry().Formats(), cobra.ShellCompDirectiveNoFileComp
}

// newRegistry builds the converter registry from the configuration and
// checks that a forced format exists. Errors are usage errors.
func newRegistry(cfg *config.Config, opts *viewerOptions) (*render.Registry, error) {
	registry := render.DefaultRegistry(render.WithTheme(cfg.Theme))

	for _, alias := range config.ExtensionAliases(cfg.Extensions) {
		if err := registry.Alias(alias[0], alias[1]); err != nil {
			return nil, &ExitError{Code: 2, Err: err}
		}
	}

	if opts.format != "" {
		if _, err := registry.Converter(opts.format); err != nil {
			return nil, &ExitError{Code: 2, Err: fmt.Errorf("--format: %w", err)}
		}
	}

	return registry, nil
}

func pipelineOptions(registry *render.Registry, opts *viewerOptions, logger *slog.Logger) []render.Option {
	return []render.Option{
		render.WithRegistry(registry),
		render.WithFormat(opts.format),
		render.WithLogger(logger),
	}
}

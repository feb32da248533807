package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docwatch/internal/config"
	"github.com/hupe1980/docwatch/internal/display"
	"github.com/hupe1980/docwatch/internal/logging"
	"github.com/hupe1980/docwatch/internal/render"
)

type renderOptions struct {
	viewerOptions

	output string
}

func newRenderCommand() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a document once",
		Long: `Render converts a document to a standalone HTML page and writes it
to stdout, or to the file given with --output. It uses the same
converters and page layout as watch.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDocuments,
		RunE:              func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	registerViewerFlags(cmd, &opts.viewerOptions)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file path (default: stdout)")

	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *renderOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	registry, err := newRegistry(cfg, &opts.viewerOptions)
	if err != nil {
		return err
	}

	pipeline := render.NewPipeline(nil, pipelineOptions(registry, &opts.viewerOptions, logging.Component(logger, "render"))...)

	res, err := pipeline.Render(path)
	if err != nil {
		if errors.Is(err, render.ErrRender) {
			return &ExitError{Code: 1, Err: err}
		}

		return err
	}

	if opts.output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
		return err
	}

	if err := display.NewFileSink(opts.output).Write(res.HTML); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	logger.Info("page written", slog.String("path", opts.output), slog.String("title", res.Title))

	return nil
}

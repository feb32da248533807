package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/docwatch/internal/config"
	"github.com/hupe1980/docwatch/internal/display"
	"github.com/hupe1980/docwatch/internal/logging"
	"github.com/hupe1980/docwatch/internal/preview"
	"github.com/hupe1980/docwatch/internal/render"
	"github.com/hupe1980/docwatch/internal/session"
)

// defaultDocument is opened when watch is started without a file.
const defaultDocument = "demo.md"

type watchOptions struct {
	viewerOptions

	stdout      bool
	interactive bool
	showDiff    bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Render a document and re-render it whenever it changes",
		Long: `Watch renders a document and keeps the display in sync with it.

The file's modification time is checked every --interval milliseconds.
Every time it moves forward the document is re-rendered exactly once.
A render failure or a missing file is reported but never replaces the
last good view; the next check retries.

At least one display is required: --output keeps an HTML file up to
date, --stdout prints every page, and --addr serves a live preview that
reloads in the browser. With --interactive, each line read from stdin
opens that file instead; an empty line closes the current document.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeDocuments,
		RunE:              func(cmd *cobra.Command, args []string) error {
			path := defaultDocument
			if len(args) == 1 {
				path = args[0]
			}

			return runWatch(cmd.Context(), cmd, path, opts)
		},
	}

	registerViewerFlags(cmd, &opts.viewerOptions)

	f := cmd.Flags()
	f.IntP("interval", "i", config.DefaultInterval, "milliseconds between checking the file")
	f.String("addr", "", "serve a live preview on this address (e.g. 127.0.0.1:8080)")
	f.StringP("output", "o", "", "keep this HTML file in sync with the document")
	f.BoolVar(&opts.stdout, "stdout", false, "print every rendered page to stdout")
	f.BoolVar(&opts.interactive, "interactive", false, "read file paths to open from stdin")
	f.BoolVar(&opts.showDiff, "show-diff", false, "report changed source lines on every reload")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, opts *watchOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	registry, err := newRegistry(cfg, &opts.viewerOptions)
	if err != nil {
		return err
	}

	var (
		sinks     []display.Sink
		reporters []session.Reporter
		server    *preview.Server
	)

	if cfg.Addr != "" {
		server = preview.NewServer(preview.WithLogger(logging.Component(logger, "preview")))
		sinks = append(sinks, server)
		reporters = append(reporters, previewReporter(server))
	}

	if cfg.Output != "" {
		sinks = append(sinks, display.NewFileSink(cfg.Output, display.WithLogger(logging.Component(logger, "display"))))
	}

	if opts.stdout {
		sinks = append(sinks, display.NewWriterSink(cmd.OutOrStdout()))
	}

	if !cfg.Quiet {
		reporters = append(reporters, session.NewStatusWriter(cmd.ErrOrStderr()))
	}

	pipeline := render.NewPipeline(display.Multi(sinks...),
		pipelineOptions(registry, &opts.viewerOptions, logging.Component(logger, "render"))...)

	sess, err := session.New(session.Options{
		Interval: time.Duration(cfg.Interval) * time.Millisecond,
		Pipeline: pipeline,
		Reporter: session.Reporters(reporters...),
		Logger:   logging.Component(logger, "session"),
		ShowDiff: opts.showDiff,
	})
	if err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("--interval: %w", err)}
	}

	if len(sinks) == 0 {
		return &ExitError{Code: 2, Err: errors.New("no display configured: use --output, --stdout or --addr")}
	}

	// Without a way to open another document a failed first open is final.
	if err := sess.Open(path); err != nil && !opts.interactive && server == nil {
		return &ExitError{Code: 1, Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sess.Run(gctx) })

	if server != nil {
		server.SetOpener(sess.Request)

		g.Go(func() error {
			logger.Info("live preview listening", slog.String("addr", cfg.Addr))
			return server.Serve(gctx, cfg.Addr)
		})
	}

	if opts.interactive {
		// Not part of the group: a blocked stdin read must not hold up shutdown.
		go readOpenRequests(gctx, cmd.InOrStdin(), sess, logger)
	}

	return g.Wait()
}

// readOpenRequests opens every line read from r as a document. An empty
// line closes the current document.
func readOpenRequests(ctx context.Context, r io.Reader, sess *session.Session, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())

		if err := sess.Request(ctx, path); err != nil {
			if errors.Is(err, session.ErrClosed) || ctx.Err() != nil {
				return
			}

			// Already reported by the session.
			logger.Debug("open request failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("reading open requests", slog.String("error", err.Error()))
	}
}

// previewReporter mirrors session events into the preview status bar.
func previewReporter(s *preview.Server) session.Reporter {
	return session.ReporterFunc(func(ev session.Event) {
		s.SetStatus(preview.Status{
			State:   ev.State.String(),
			Path:    ev.Path,
			Name:    ev.Name(),
			Message: ev.Message(),
			OK:      !ev.Failed(),
			Time:    ev.Time,
		})
	})
}

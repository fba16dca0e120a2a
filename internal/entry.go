// Package internal wires configuration, logging, the execution engine and
// the pipeline into the application commands.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/nbexec/internal/engine"
	"github.com/starford/nbexec/internal/history"
	"github.com/starford/nbexec/internal/job"
	"github.com/starford/nbexec/internal/pipeline"
	"github.com/starford/nbexec/internal/preview"
	"github.com/starford/nbexec/internal/render"
	"github.com/starford/nbexec/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured logger. Stdout is reserved for the manifest,
// so logs always go to stderr.
func (a *application) logger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	var h slog.Handler
	if a.config.App.LogFormat == LogFormatText {
		h = slog.NewTextHandler(a.stderr, hopts)
	} else {
		h = slog.NewJSONHandler(a.stderr, hopts)
	}
	return slog.New(h)
}

func (a *application) readJob() (*job.Request, error) {
	if a.job == nil {
		return nil, fmt.Errorf("job request is required")
	}
	return job.Parse(a.job)
}

// pipeline assembles the pipeline. The returned closer releases the history
// ledger, if one was opened.
func (a *application) pipeline(logger *slog.Logger) (*pipeline.Pipeline, io.Closer, error) {
	cfg := a.config
	sessions := func(context.Context) (pipeline.Session, error) {
		s, err := engine.NewSession(engine.Options{
			CellTimeout: cfg.Engine.CellTimeout,
			Env:         cfg.Engine.Env,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	var closer io.Closer = nopCloser{}
	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init history: %w", err)
		}
		opts = append(opts, pipeline.WithRecorder(db))
		closer = db
	}
	return pipeline.New(sessions, render.NewMarkdown(), opts...), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Run executes a single job and writes its manifest to stdout. Nothing is
// written to stdout when the run fails.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	req, err := app.readJob()
	if err != nil {
		return err
	}
	logger.Debug("Job received",
		slog.String("input", req.Input),
		slog.String("output", req.Output),
		slog.Duration("cell_timeout", app.config.Engine.CellTimeout))

	p, closer, err := app.pipeline(logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	return res.Manifest.Write(app.stdout)
}

// Watch runs the job, then re-runs it whenever the input notebook changes,
// until ctx is cancelled or the process receives SIGINT/SIGTERM.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	req, err := app.readJob()
	if err != nil {
		return err
	}
	// A bad request would fail every run; reject it before watching.
	if err := req.Validate(); err != nil {
		return err
	}

	p, closer, err := app.pipeline(logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return watch.Watch(gCtx, p, req, app.config.Watch.Debounce, logger, func(res *pipeline.Result, err error) {
			if err != nil {
				return
			}
			if werr := res.Manifest.Write(app.stdout); werr != nil {
				logger.Error("Write manifest failed", slog.String("error", werr.Error()))
			}
		})
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Watch stopped")
	return nil
}

// History lists the most recent recorded runs.
func History(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger())

	if !app.config.History.Enabled {
		return errors.New("history is disabled; set history.enabled in the config")
	}
	db, err := history.Open(app.config.History.Path)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer db.Close()

	runs, err := db.Recent(ctx, app.historyLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tEXECUTED\tSKIPPED\tFAILED\tDURATION\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			r.Executed, r.Skipped, r.Failed,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Input)
	}
	return tw.Flush()
}

// Preview renders a Markdown file for the terminal.
func Preview(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger())

	if app.previewFile == "" {
		return errors.New("preview: a Markdown file is required")
	}
	data, err := os.ReadFile(app.previewFile)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	out, err := preview.Render(string(data), app.config.Preview.Style, app.config.Preview.Width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(app.stdout, out)
	return err
}

// Package pipeline sequences a run: execute the notebook in place, redact
// and render it, write the figures and Markdown, and report a manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/nbexec/internal/apperr"
	"github.com/starford/nbexec/internal/checksum"
	"github.com/starford/nbexec/internal/execute"
	"github.com/starford/nbexec/internal/history"
	"github.com/starford/nbexec/internal/job"
	"github.com/starford/nbexec/internal/models"
	"github.com/starford/nbexec/internal/redact"
	"github.com/starford/nbexec/internal/storage"
	"github.com/starford/nbexec/internal/tags"
)

// Support directory naming.
const (
	FilesSuffix   = "_files"
	FiguresSubdir = "figure-ipynb"
)

// Session is an execution engine bound to one run.
type Session interface {
	execute.Engine
	io.Closer
}

// SessionFactory starts a fresh engine session for a run.
type SessionFactory func(ctx context.Context) (Session, error)

// Renderer turns a redacted notebook into text and fills res.Outputs with
// generated files named under res.OutputFilesDir.
type Renderer interface {
	Render(nb *models.Notebook, res *models.Resources) (string, error)
}

// SupportPaths names the directories generated next to the notebook.
type SupportPaths struct {
	Files   string // <stem>_files
	Figures string // <stem>_files/figure-ipynb
}

// SupportDirs derives the support directory names from the input file name.
func SupportDirs(input string) SupportPaths {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	files := stem + FilesSuffix
	return SupportPaths{Files: files, Figures: path.Join(files, FiguresSubdir)}
}

// Result describes a successful run.
type Result struct {
	Manifest   *job.Manifest
	InputPath  string
	OutputPath string
	// Checksum is the digest of the executed notebook written to InputPath.
	Checksum string
	Stats    execute.Stats
	Figures  []string
}

// Pipeline runs jobs one at a time.
type Pipeline struct {
	newSession SessionFactory
	renderer   Renderer
	recorder   history.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every run in the history ledger.
func WithRecorder(r history.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline.
func New(newSession SessionFactory, renderer Renderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		newSession: newSession,
		renderer:   renderer,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one job. Any error aborts the run; the returned Result is
// only valid when err is nil.
func (p *Pipeline) Run(ctx context.Context, req *job.Request) (*Result, error) {
	started := p.now()
	res, stats, err := p.run(ctx, req)
	p.record(ctx, req, res, stats, err, started)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req *job.Request) (*Result, execute.Stats, error) {
	var stats execute.Stats
	if err := req.Validate(); err != nil {
		return nil, stats, fmt.Errorf("pipeline: %w", err)
	}
	format := req.Resolve()

	// Ingest: every path below is relative to the notebook directory.
	inputAbs, err := filepath.Abs(req.Input)
	if err != nil {
		return nil, stats, fmt.Errorf("pipeline: resolve input: %w", err)
	}
	store, err := storage.NewFS(filepath.Dir(inputAbs))
	if err != nil {
		return nil, stats, fmt.Errorf("pipeline: %w", err)
	}
	inputName := filepath.Base(inputAbs)
	outputName := filepath.Base(req.Output)
	logger := p.logger.With(slog.String("input", inputAbs))

	// Execute in place.
	stats, sum, err := p.executeInPlace(ctx, store, inputName, format, logger)
	if err != nil {
		return nil, stats, err
	}
	logger.Info("pipeline: notebook executed",
		slog.Int("executed", stats.Executed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))

	// Render.
	dirs := SupportDirs(inputName)
	if err := store.EnsureDir(dirs.Figures); err != nil {
		return nil, stats, fmt.Errorf("pipeline: %w", err)
	}
	nb, err := load(store, inputName)
	if err != nil {
		return nil, stats, err
	}
	resources := models.NewResources(dirs.Figures)
	nb, resources = redact.New(format.IncludeInput, format.IncludeOutput).Apply(nb, resources)
	text, err := p.renderer.Render(nb, resources)
	if err != nil {
		return nil, stats, fmt.Errorf("pipeline: render: %w", err)
	}

	// Materialize.
	figures := make([]string, 0, len(resources.Outputs))
	for name := range resources.Outputs {
		figures = append(figures, name)
	}
	sort.Strings(figures)
	for _, name := range figures {
		if !strings.HasPrefix(path.Clean(filepath.ToSlash(name)), dirs.Figures+"/") {
			return nil, stats, fmt.Errorf("pipeline: renderer produced %s outside %s", name, dirs.Figures)
		}
		if err := store.Write(name, resources.Outputs[name]); err != nil {
			return nil, stats, fmt.Errorf("pipeline: write figure: %w", err)
		}
	}
	if err := store.Write(outputName, []byte(text)); err != nil {
		return nil, stats, fmt.Errorf("pipeline: write output: %w", err)
	}
	outputAbs, _ := store.Abs(outputName)
	logger.Info("pipeline: output written",
		slog.String("output", outputAbs),
		slog.Int("figures", len(figures)))

	// Report.
	return &Result{
		Manifest:   job.NewManifest(dirs.Files),
		InputPath:  inputAbs,
		OutputPath: outputAbs,
		Checksum:   sum,
		Stats:      stats,
		Figures:    figures,
	}, stats, nil
}

// executeInPlace runs the notebook and overwrites the input with the result.
// Nothing is written when execution fails.
func (p *Pipeline) executeInPlace(ctx context.Context, store storage.Provider, name string, format job.Format, logger *slog.Logger) (execute.Stats, string, error) {
	var stats execute.Stats
	nb, err := load(store, name)
	if err != nil {
		return stats, "", err
	}

	clearOutputs(nb)

	session, err := p.newSession(ctx)
	if err != nil {
		return stats, "", fmt.Errorf("pipeline: start session: %w", err)
	}
	defer session.Close()

	executor := execute.NewExecutor(session, execute.Options{
		AllowErrors:     format.AllowErrors,
		IncludeWarnings: format.IncludeWarnings,
	}, logger)
	stats, err = executor.ExecuteNotebook(ctx, nb, models.NewResources(""))
	if err != nil {
		return stats, "", fmt.Errorf("pipeline: execute: %w", err)
	}

	if nb.EnsureCellIDs() {
		logger.Debug("pipeline: assigned missing cell ids")
	}
	data, err := nb.Encode()
	if err != nil {
		return stats, "", fmt.Errorf("pipeline: %w", err)
	}
	if err := store.Write(name, data); err != nil {
		return stats, "", fmt.Errorf("pipeline: write executed notebook: %w", err)
	}
	return stats, checksum.Sum(data), nil
}

// clearOutputs empties every code cell before execution, so cells the policy
// skips come out without outputs from an earlier session.
func clearOutputs(nb *models.Notebook) {
	fields := tags.Default().OutputMetadata
	for _, cell := range nb.Cells {
		if !cell.IsCode() {
			continue
		}
		cell.ClearOutputs()
		for _, field := range fields {
			delete(cell.Metadata, field)
		}
	}
}

func load(store storage.Provider, name string) (*models.Notebook, error) {
	data, err := store.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("pipeline: %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	nb, err := models.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", name, err)
	}
	return nb, nil
}

// record writes the run to the ledger. Ledger failures never fail the run.
func (p *Pipeline) record(ctx context.Context, req *job.Request, res *Result, stats execute.Stats, runErr error, started time.Time) {
	if p.recorder == nil {
		return
	}
	run := history.Run{
		Input:      req.Input,
		Output:     req.Output,
		Status:     history.StatusSucceeded,
		Executed:   stats.Executed,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
		StartedAt:  started,
		FinishedAt: p.now(),
	}
	if abs, err := filepath.Abs(req.Input); err == nil {
		run.Input = abs
	}
	if res != nil {
		run.Output = res.OutputPath
		run.Checksum = res.Checksum
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}
	if _, err := p.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("pipeline: record run failed", slog.String("error", err.Error()))
	}
}

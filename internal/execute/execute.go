// Package execute decides, cell by cell, whether a notebook cell is sent to
// the execution engine and how an execution failure affects the run.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/nbexec/internal/apperr"
	"github.com/starford/nbexec/internal/models"
	"github.com/starford/nbexec/internal/tags"
)

// Engine runs a single code cell in the session bound to the current
// notebook. It clears the cell's previous outputs, attaches new outputs and
// an execution count, and blocks until the cell completes.
//
// A failure of the executed code is reported as *CellError after the error
// output has been attached to the cell. Any other error means the engine
// itself could not run the cell.
type Engine interface {
	RunCell(ctx context.Context, cell *models.Cell, index int) error
}

// CellError reports that the code in a cell raised or aborted.
type CellError struct {
	Index     int
	Ename     string
	Evalue    string
	Traceback []string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %d: %s: %s", e.Index, e.Ename, e.Evalue)
}

// Unwrap lets callers match the failure with errors.Is(err, apperr.ErrCellExecution).
func (e *CellError) Unwrap() error { return apperr.ErrCellExecution }

// Options holds the run-wide switches the policy reads.
type Options struct {
	AllowErrors     bool
	IncludeWarnings bool
}

// Stats counts what happened to the cells of one notebook.
type Stats struct {
	Executed int
	Skipped  int
	Failed   int
}

// Executor applies the selective execution policy around an Engine.
type Executor struct {
	engine Engine
	opts   Options
	vocab  tags.Vocabulary
	logger *slog.Logger
}

// NewExecutor creates an executor that delegates to engine.
func NewExecutor(engine Engine, opts Options, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, opts: opts, vocab: tags.Default(), logger: logger}
}

// ExecuteNotebook runs every cell in document order. It stops at the first
// fatal failure; cells after it are not executed.
func (e *Executor) ExecuteNotebook(ctx context.Context, nb *models.Notebook, res *models.Resources) (Stats, error) {
	var stats Stats
	for i, cell := range nb.Cells {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %w", apperr.ErrEngine, err)
		}
		ran, err := e.ExecuteCell(ctx, cell, i, res)
		switch {
		case err != nil:
			stats.Failed++
			return stats, err
		case !ran:
			stats.Skipped++
		default:
			stats.Executed++
			if failed(cell) {
				stats.Failed++
			}
		}
	}
	return stats, nil
}

// ExecuteCell applies the policy to one cell. It reports whether the engine
// was invoked. The resources bag is threaded through unchanged.
func (e *Executor) ExecuteCell(ctx context.Context, cell *models.Cell, index int, _ *models.Resources) (bool, error) {
	if !cell.IsCode() {
		return false, nil
	}
	if cell.Tags().Intersects(e.vocab.NoExecute) {
		e.logger.Debug("execute: skipped", slog.Int("cell", index))
		return false, nil
	}
	if strings.TrimSpace(string(cell.Source)) == "" {
		return false, nil
	}

	err := e.engine.RunCell(ctx, cell, index)
	if err != nil {
		var cellErr *CellError
		if !errors.As(err, &cellErr) {
			return true, fmt.Errorf("%w: cell %d: %w", apperr.ErrEngine, index, err)
		}
		if !e.opts.AllowErrors {
			return true, err
		}
		e.logger.Warn("execute: cell raised, continuing",
			slog.Int("cell", index),
			slog.String("ename", cellErr.Ename),
			slog.String("evalue", cellErr.Evalue))
	}

	if !e.opts.IncludeWarnings {
		stripWarnings(cell)
	}
	e.logger.Debug("execute: ran", slog.Int("cell", index))
	return true, nil
}

// stripWarnings drops stderr stream outputs, which is where the engine
// reports warnings.
func stripWarnings(cell *models.Cell) {
	kept := cell.Outputs[:0]
	for _, o := range cell.Outputs {
		if o.OutputType == models.OutputStream && o.Name == models.StreamStderr {
			continue
		}
		kept = append(kept, o)
	}
	cell.Outputs = kept
}

func failed(cell *models.Cell) bool {
	for _, o := range cell.Outputs {
		if o.OutputType == models.OutputError {
			return true
		}
	}
	return false
}

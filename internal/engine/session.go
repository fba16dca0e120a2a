// Package engine runs Go notebook cells in an embedded yaegi interpreter.
//
// One Session corresponds to one kernel: bindings, imports, and types
// declared by a cell stay visible to every later cell of the same session.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/starford/nbexec/internal/execute"
	"github.com/starford/nbexec/internal/models"
)

// Error names attached to error outputs.
const (
	EnameCompile = "CompileError"
	EnameRuntime = "RuntimeError"
)

// Options configures a session.
type Options struct {
	// CellTimeout bounds a single cell. Zero disables the limit.
	CellTimeout time.Duration
	// Env is exposed to interpreted code through os.Getenv.
	Env []string
}

// Session is a live interpreter bound to one notebook run.
type Session struct {
	interp  *interp.Interpreter
	timeout time.Duration
	logger  *slog.Logger

	stdout bytes.Buffer
	stderr bytes.Buffer

	// current is the cell whose outputs display calls append to.
	current  *models.Cell
	imported map[string]bool
	count    int
	closed   bool
}

// Verify *Session satisfies execute.Engine at compile time.
var _ execute.Engine = (*Session)(nil)

// NewSession starts a fresh interpreter with the standard library and the
// display package loaded.
func NewSession(opts Options, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{timeout: opts.CellTimeout, logger: logger, imported: map[string]bool{}}
	s.interp = interp.New(interp.Options{
		Stdout: &s.stdout,
		Stderr: &s.stderr,
		Env:    opts.Env,
	})
	if err := s.interp.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("engine: load stdlib: %w", err)
	}
	if err := s.interp.Use(s.displaySymbols()); err != nil {
		return nil, fmt.Errorf("engine: load display package: %w", err)
	}
	return s, nil
}

// RunCell evaluates the cell source, replacing its outputs and assigning the
// next execution count.
func (s *Session) RunCell(ctx context.Context, cell *models.Cell, index int) error {
	if s.closed {
		return errors.New("engine: session closed")
	}

	cell.ClearOutputs()
	s.count++
	n := s.count
	cell.ExecutionCount = &n

	s.stdout.Reset()
	s.stderr.Reset()
	s.current = cell
	defer func() { s.current = nil }()

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.eval(runCtx, string(cell.Source))
	if ctxErr := runCtx.Err(); ctxErr != nil {
		// The interpreter goroutine may still be running; the session is
		// unusable from here on.
		s.closed = true
		return fmt.Errorf("engine: cell %d: %w", index, ctxErr)
	}
	s.flushStreams()

	s.logger.Debug("engine: cell evaluated",
		slog.Int("cell", index),
		slog.Int("execution_count", n),
		slog.Duration("elapsed", time.Since(start)))

	if err == nil {
		return nil
	}
	cellErr := classify(index, err)
	cell.Outputs = append(cell.Outputs, models.ErrorOutput(cellErr.Ename, cellErr.Evalue, cellErr.Traceback))
	return cellErr
}

// eval runs the cell's import declarations one by one, then the rest of the
// source. The interpreter rejects a second import of the same package, so
// imports already made by earlier cells are skipped.
func (s *Session) eval(ctx context.Context, src string) error {
	specs, body := splitImports(src)
	for _, spec := range specs {
		if s.imported[spec] {
			continue
		}
		if err := s.run(ctx, "import "+spec); err != nil {
			return err
		}
		s.imported[spec] = true
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return s.run(ctx, body)
}

// compileError marks a failure raised before any statement of the source
// ran: a parse, type check, or import error.
type compileError struct{ err error }

func (e *compileError) Error() string { return e.err.Error() }
func (e *compileError) Unwrap() error { return e.err }

// run compiles src and then executes it. Execution panics come back as
// interp.Panic errors.
func (s *Session) run(ctx context.Context, src string) error {
	prog, err := s.compile(src)
	if err != nil {
		return &compileError{err: err}
	}
	_, err = s.interp.ExecuteWithContext(ctx, prog)
	return err
}

func (s *Session) compile(src string) (prog *interp.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return s.interp.Compile(src)
}

// Close marks the session unusable. The interpreter has no resources to
// release beyond memory.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

// flushStreams moves buffered stdout/stderr into stream outputs so that they
// interleave correctly with display calls.
func (s *Session) flushStreams() {
	if s.current == nil {
		return
	}
	if s.stdout.Len() > 0 {
		s.current.Outputs = append(s.current.Outputs, models.StreamOutput(models.StreamStdout, s.stdout.String()))
		s.stdout.Reset()
	}
	if s.stderr.Len() > 0 {
		s.current.Outputs = append(s.current.Outputs, models.StreamOutput(models.StreamStderr, s.stderr.String()))
		s.stderr.Reset()
	}
}

func classify(index int, err error) *execute.CellError {
	ename := EnameRuntime
	var ce *compileError
	if errors.As(err, &ce) {
		ename = EnameCompile
	}
	msg := strings.TrimRight(err.Error(), "\n")
	lines := strings.Split(msg, "\n")
	return &execute.CellError{
		Index:     index,
		Ename:     ename,
		Evalue:    lines[0],
		Traceback: lines,
	}
}

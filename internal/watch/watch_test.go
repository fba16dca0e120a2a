package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/nbexec/internal/checksum"
	"github.com/starford/nbexec/internal/job"
	"github.com/starford/nbexec/internal/pipeline"
)

// rewritingRunner mimics the pipeline: it rewrites the input and reports the
// checksum of what it wrote.
type rewritingRunner struct {
	mu   sync.Mutex
	runs int
	fail bool
}

func (r *rewritingRunner) Run(_ context.Context, req *job.Request) (*pipeline.Result, error) {
	r.mu.Lock()
	r.runs++
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return nil, errors.New("cell failed")
	}
	data, err := os.ReadFile(req.Input)
	if err != nil {
		return nil, err
	}
	executed := append(data, []byte(" executed")...)
	if err := os.WriteFile(req.Input, executed, 0o644); err != nil {
		return nil, err
	}
	return &pipeline.Result{Checksum: checksum.Sum(executed), OutputPath: "out.md"}, nil
}

func (r *rewritingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func setup(t *testing.T) (*job.Request, *slog.Logger) {
	t.Helper()
	input := filepath.Join(t.TempDir(), "demo.ipynb")
	if err := os.WriteFile(input, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &job.Request{Input: input, Output: "demo.md"}, logger
}

func TestWatch_RerunsOnExternalChangeOnly(t *testing.T) {
	req, logger := setup(t)
	runner := &rewritingRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, runner, req, 50*time.Millisecond, logger, nil) }()

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool { return runner.count() == 1 }, "initial run missing")

	// The runner's own rewrite must not trigger another run.
	time.Sleep(300 * time.Millisecond)
	if n := runner.count(); n != 1 {
		t.Fatalf("runs after own write = %d, want 1", n)
	}

	_ = os.WriteFile(req.Input, []byte("v2"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return runner.count() == 2 }, "external change did not trigger a run")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestWatch_FailedRunKeepsWatching(t *testing.T) {
	req, logger := setup(t)
	runner := &rewritingRunner{fail: true}

	var mu sync.Mutex
	var errs int
	cb := func(_ *pipeline.Result, err error) {
		if err != nil {
			mu.Lock()
			errs++
			mu.Unlock()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Watch(ctx, runner, req, 50*time.Millisecond, logger, cb) }()

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool { return runner.count() == 1 }, "initial run missing")
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(req.Input, []byte("v2"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errs == 2
	}, "watcher stopped after a failed run")
}

// Package watch re-runs the pipeline whenever the source notebook changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/nbexec/internal/checksum"
	"github.com/starford/nbexec/internal/job"
	"github.com/starford/nbexec/internal/pipeline"
)

// DefaultDebounce is how long the watcher waits after the last change before
// running.
const DefaultDebounce = 200 * time.Millisecond

// Runner runs a single job.
type Runner interface {
	Run(ctx context.Context, req *job.Request) (*pipeline.Result, error)
}

// ResultCallback is called after every run, successful or not.
type ResultCallback func(res *pipeline.Result, err error)

// Watch runs req once, then again after each external change to the input
// notebook, until ctx is cancelled. Failed runs are reported through cb and
// do not stop the watcher.
//
// The pipeline rewrites its own input, so a change whose content matches
// what the last run wrote is ignored.
func Watch(ctx context.Context, runner Runner, req *job.Request, debounce time.Duration, logger *slog.Logger, cb ResultCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	input, err := filepath.Abs(req.Input)
	if err != nil {
		return fmt.Errorf("watch: resolve input: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	// Watch the directory: atomic rewrites replace the file's inode.
	if err := w.Add(filepath.Dir(input)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(input), err)
	}

	var lastWritten string
	run := func() {
		res, err := runner.Run(ctx, req)
		if err != nil {
			logger.Error("watch: run failed", slog.String("input", input), slog.String("error", err.Error()))
		} else {
			lastWritten = res.Checksum
			logger.Info("watch: run complete", slog.String("output", res.OutputPath))
		}
		if cb != nil {
			cb(res, err)
		}
	}

	run()
	logger.Info("watch: started", slog.String("input", input))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-timerCh:
			sum, err := checksum.File(input)
			if err != nil {
				logger.Warn("watch: read input failed", slog.String("error", err.Error()))
				continue
			}
			if sum == lastWritten {
				logger.Debug("watch: ignoring own write")
				continue
			}
			run()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != input {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

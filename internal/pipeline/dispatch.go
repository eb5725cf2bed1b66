package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

// Dispatcher hands a run off without waiting for it. Dispatch returns once
// the work is handed off; its error only says whether that happened.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig Signal) error
}

// Runner is the part of Pipeline a dispatcher needs
type Runner interface {
	Run(ctx context.Context, sig Signal, opts Options) (*Result, error)
}

// GoroutineDispatcher runs each signal on its own goroutine behind a
// recover boundary. Backfill uses it; the hook uses a process dispatcher
// so the host is never kept waiting.
type GoroutineDispatcher struct {
	runner Runner
	opts   Options
	wg     sync.WaitGroup

	// OnDone, if set, receives every finished result
	OnDone func(*Result)
}

func NewGoroutineDispatcher(runner Runner, opts Options) *GoroutineDispatcher {
	return &GoroutineDispatcher{runner: runner, opts: opts}
}

// Dispatch starts the run. The run is detached from ctx cancellation but
// keeps its values.
func (d *GoroutineDispatcher) Dispatch(ctx context.Context, sig Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Ctx(runCtx).Error("pipeline run panicked",
					"session_id", sig.SessionID,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
			}
		}()

		res, err := d.runner.Run(runCtx, sig, d.opts)
		if err != nil {
			logger.Ctx(runCtx).Warn("pipeline run rejected", "session_id", sig.SessionID, "error", err)
			return
		}
		if d.OnDone != nil {
			d.OnDone(res)
		}
	}()
	return nil
}

// Wait blocks until every dispatched run has finished
func (d *GoroutineDispatcher) Wait() {
	d.wg.Wait()
}

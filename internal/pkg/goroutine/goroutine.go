// Package goroutine runs background tasks with a concurrency cap, recovering
// panics so one bad task cannot take the process down.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// DefaultMaxGoroutine is multiplied by the CPU count when NewManager receives
// a non-positive limit.
const DefaultMaxGoroutine int = 100

// maxKeptErrors bounds the task errors retained for Wait.
const maxKeptErrors = 64

// Runner schedules background work. Manager is the production implementation.
type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

// Manager runs tasks on at most a fixed number of goroutines. When every slot
// is busy Go blocks until one frees up or ctx ends, so callers feel
// backpressure instead of losing work.
type Manager struct {
	wg   sync.WaitGroup
	sema chan struct{}

	// held for reading while scheduling so Wait never races a wg.Add
	stateMu sync.RWMutex
	closed  bool

	mu   sync.Mutex
	errs []error

	running atomic.Int64
	skipped atomic.Int64
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go runs f in its own goroutine. f is skipped, with a warning, when the
// manager is closed or ctx ends before a slot frees up.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		g.skipped.Inc()
		slog.WarnContext(ctx, "goroutine manager is closed, skipping task")
		return
	}

	if err := ctx.Err(); err != nil {
		g.skipped.Inc()
		slog.WarnContext(ctx, "task canceled before it could start", "because", err)
		return
	}

	select {
	case g.sema <- struct{}{}:
	case <-ctx.Done():
		g.skipped.Inc()
		slog.WarnContext(ctx, "task canceled before it could start", "because", ctx.Err())
		return
	}

	g.running.Inc()
	g.wg.Go(func() {
		defer func() {
			g.running.Dec()
			<-g.sema

			if rvr := recover(); rvr != nil {
				stack := debug.Stack()
				if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
					slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
				} else {
					slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
				}
			}
		}()

		if err := f(ctx); err != nil {
			g.keep(err)
		}
	})
}

func (g *Manager) keep(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.errs) < maxKeptErrors {
		g.errs = append(g.errs, err)
	}
}

// Running is the number of tasks in flight.
func (g *Manager) Running() int64 {
	return g.running.Load()
}

// Skipped counts tasks that never started.
func (g *Manager) Skipped() int64 {
	return g.skipped.Load()
}

// Wait closes the manager, blocks until in-flight tasks finish and returns the
// errors they reported.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

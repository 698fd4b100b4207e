// Package dispatch runs best-effort work that follows a committed write.
// A task never affects the outcome of the request that scheduled it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
)

const defaultTaskTimeout = 30 * time.Second

// ErrClosed is returned by Go after Shutdown started.
var ErrClosed = errors.New("dispatcher closed")

// Task is a named unit of side-effect work. Fields are attached to every
// log line the dispatcher writes for it.
type Task struct {
	Name   string
	Fields map[string]any
	Run    func(ctx context.Context) error
}

// Runner schedules tasks.
type Runner interface {
	Go(ctx context.Context, task Task) error
}

// Params configures a Dispatcher. A zero Timeout uses the default.
type Params struct {
	Timeout time.Duration
	Metrics *metrics.DispatchMetrics
	Logger  *logger.Logger
}

// Dispatcher runs each task on its own goroutine with a context detached
// from the caller's cancellation.
type Dispatcher struct {
	timeout time.Duration
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a Dispatcher ready to accept tasks.
func New(params Params) *Dispatcher {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{timeout: timeout, metrics: params.Metrics, logg: logg}
}

// Go schedules task. The caller's context values (request id, user id) are
// kept but its deadline and cancellation are not.
func (d *Dispatcher) Go(ctx context.Context, task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no run func", task.Name)
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	d.metrics.Started()
	go func() {
		defer d.wg.Done()
		defer d.metrics.Finished()
		d.run(detached, task)
	}()
	return nil
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logCtx := ctx
	if len(task.Fields) > 0 {
		logCtx = d.logg.WithFields(ctx, task.Fields)
	}
	logCtx = d.logg.WithField(logCtx, "task", task.Name)

	start := time.Now()
	outcome := metrics.OutcomeSuccess
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.OutcomePanic
			err := pkgerrors.New(pkgerrors.CodeSideEffect, fmt.Sprintf("task panicked: %v", r))
			d.logg.Error(logCtx, "side effect panicked", err)
		}
		d.metrics.Observe(task.Name, outcome, time.Since(start))
	}()

	if err := task.Run(ctx); err != nil {
		outcome = metrics.OutcomeFailure
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		d.logg.Error(logCtx, "side effect failed", pkgerrors.Wrap(pkgerrors.CodeSideEffect, err, task.Name))
	}
}

// Wait blocks until every scheduled task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight ones until ctx
// expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

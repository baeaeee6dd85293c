// Package worker runs the pool of execution loops that consume ready tasks
// from the work channel, execute them, and report outcomes on the status
// channel. Workers are stateless with respect to scheduling: they never
// inspect the dependency graph or the status record.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/dispatch"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/task"
)

// Pool is a fixed set of worker goroutines bound to one channel pair.
type Pool struct {
	count       int
	taskTimeout time.Duration
	registry    *registry.Registry
	ch          *dispatch.Channels
	wg          sync.WaitGroup
}

// NewPool creates a pool of count workers. taskTimeout bounds each execution
// attempt; zero disables the per-task deadline.
func NewPool(count int, taskTimeout time.Duration, reg *registry.Registry, ch *dispatch.Channels) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		count:       count,
		taskTimeout: taskTimeout,
		registry:    reg,
		ch:          ch,
	}
}

// Start launches the worker goroutines. They exit when the work channel is
// closed or the context is canceled.
func (p *Pool) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", p.count)
	p.wg.Add(p.count)
	for i := 0; i < p.count; i++ {
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker loop has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// run is the core processing loop for a single worker.
func (p *Pool) run(ctx context.Context, workerID int) {
	defer p.wg.Done()
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for env := range p.ch.Work {
		taskLogger := logger.With("task", env.Task.Key(), "kind", env.Task.Kind(), "attempt", env.Attempt)

		if ctx.Err() != nil {
			taskLogger.Warn("Context canceled, reporting task without execution.")
			p.ch.Status <- dispatch.Report{
				Key:     env.Task.Key(),
				Attempt: env.Attempt,
				Output:  cty.NilVal,
				Err:     task.Terminal(ctx.Err()),
			}
			continue
		}

		taskLogger.Debug("Worker picked up task.")
		output, err := p.execute(ctx, env.Task)
		if err != nil {
			taskLogger.Error("Task execution failed.", "error", err)
		} else {
			taskLogger.Debug("Task execution succeeded.")
		}

		p.ch.Status <- dispatch.Report{
			Key:     env.Task.Key(),
			Attempt: env.Attempt,
			Output:  output,
			Err:     err,
		}
	}
	logger.Debug("Worker finished.")
}

// execute runs one attempt under the per-task deadline, converting panics
// and timeouts into failure reports instead of killing the worker loop.
func (p *Pool) execute(ctx context.Context, t *task.Task) (output cty.Value, err error) {
	taskCtx := ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			output = cty.NilVal
			err = task.Transient(fmt.Errorf("task panicked: %v\n%s", r, debug.Stack()))
		}
	}()

	output, err = p.registry.Execute(taskCtx, t)
	if err != nil && taskCtx.Err() == context.DeadlineExceeded && !task.IsTransient(err) {
		// A hung task body is indistinguishable from a lost worker; both
		// surface as a deadline and are worth retrying.
		err = task.Transient(fmt.Errorf("task exceeded deadline of %s: %w", p.taskTimeout, err))
	}
	return output, err
}

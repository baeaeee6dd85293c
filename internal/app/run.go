package app

import (
	"context"
	"fmt"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/dispatch"
	"github.com/pipedag/pipedag/internal/scheduler"
	"github.com/pipedag/pipedag/internal/worker"
)

// Run executes every loaded pipeline to completion based on the provided
// configuration.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
	}

	specsByPipeline, err := a.model.BuildSpecs()
	if err != nil {
		return fmt.Errorf("failed to build task specs: %w", err)
	}

	total := 0
	for _, specs := range specsByPipeline {
		total += len(specs)
	}
	if total == 0 {
		a.logger.Warn("No tasks found in any pipeline, execution not required.")
		return nil
	}

	ch := dispatch.New(appConfig.QueueSize)
	pool := worker.NewPool(appConfig.WorkerCount, appConfig.TaskTimeout, a.registry, ch)
	sched := scheduler.New(ch, a.registry, scheduler.Config{
		DefaultRetries: appConfig.DefaultRetries,
		RetryDelay:     appConfig.RetryDelay,
		StallTimeout:   appConfig.StallTimeout,
	})

	// One resolver per pipeline: failure in one pipeline never blocks the
	// others.
	for name, specs := range specsByPipeline {
		if err := sched.Enqueue(ctx, specs); err != nil {
			return fmt.Errorf("failed to prepare pipeline %q: %w", name, err)
		}
		a.logger.Debug("Pipeline enqueued.", "pipeline", name, "tasks", len(specs))
	}

	pool.Start(ctx)
	a.logger.Info("🚀 Starting concurrent execution...",
		"run_id", sched.RunID(), "tasks", total, "workers", appConfig.WorkerCount)

	summary, runErr := sched.Run(ctx)
	ch.CloseWork()

	// Workers may still be blocked handing in reports for attempts the
	// scheduler no longer waits on; keep draining until every loop exits.
	poolDone := make(chan struct{})
	go func() {
		pool.Wait()
		close(poolDone)
	}()
	for draining := true; draining; {
		select {
		case <-ch.Status:
		case <-poolDone:
			draining = false
		}
	}

	a.logger.Info("🏁 Execution finished.",
		"run_id", summary.RunID,
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"blocked", len(summary.Blocked),
	)
	for _, key := range summary.Failed {
		a.logger.Error("Task failed.", "task", key, "error", summary.Errors[key])
	}
	for _, key := range summary.Blocked {
		a.logger.Warn("Task blocked.", "task", key, "error", summary.Errors[key])
	}

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

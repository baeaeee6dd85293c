// Package scheduler implements the coordinating loop of pipedag: a single
// thread of control that owns the status record and the active resolver set,
// releases ready tasks to the worker pool, consumes completion reports, and
// expands the graph with dynamically discovered downstream work.
//
// All scheduler state is mutated exclusively by the coordinator goroutine
// running Run; workers communicate only through the dispatch channels, so no
// locks guard the maps below.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pipedag/pipedag/internal/ctxlog"
	"github.com/pipedag/pipedag/internal/dispatch"
	"github.com/pipedag/pipedag/internal/registry"
	"github.com/pipedag/pipedag/internal/resolver"
	"github.com/pipedag/pipedag/internal/task"
)

// Config carries the scheduling policies left open to the caller.
type Config struct {
	// DefaultRetries is the transient-failure budget applied to tasks that
	// do not declare their own. Zero means no retry.
	DefaultRetries int
	// RetryDelay is the pause before a transient failure is re-released.
	// Zero re-releases immediately.
	RetryDelay time.Duration
	// StallTimeout bounds how long the coordinator waits for any status
	// report while tasks are in flight. When it elapses, every running task
	// is presumed lost with its worker and treated as a transient failure.
	// Zero disables the watchdog.
	StallTimeout time.Duration
}

// Scheduler drives one run of one or more task batches to completion.
type Scheduler struct {
	ch    *dispatch.Channels
	reg   *registry.Registry
	cfg   Config
	runID string

	status   map[task.Key]Status
	tasks    map[task.Key]*task.Task
	owner    map[task.Key]*resolver.Resolver
	active   []*resolver.Resolver
	attempts map[task.Key]int
	failures map[task.Key]error
	inflight int

	// pending holds released envelopes awaiting a work channel slot. The
	// coordinator only tops up the bounded channel from here, never blocking
	// on it without also draining status reports.
	pending []dispatch.Envelope

	// retryC feeds delayed retries back to the coordinator so that only the
	// coordinator ever sends on the work channel. done releases retry timers
	// still pending when the run ends.
	retryC chan dispatch.Envelope
	done   chan struct{}
}

// New creates a scheduler bound to the given channel pair and registry.
func New(ch *dispatch.Channels, reg *registry.Registry, cfg Config) *Scheduler {
	return &Scheduler{
		ch:       ch,
		reg:      reg,
		cfg:      cfg,
		runID:    uuid.NewString(),
		status:   make(map[task.Key]Status),
		tasks:    make(map[task.Key]*task.Task),
		owner:    make(map[task.Key]*resolver.Resolver),
		attempts: make(map[task.Key]int),
		failures: make(map[task.Key]error),
		retryC:   make(chan dispatch.Envelope),
		done:     make(chan struct{}),
	}
}

// RunID returns the unique identifier of this scheduler run.
func (s *Scheduler) RunID() string { return s.runID }

// TaskStatus returns the coordinator's recorded status for a task.
func (s *Scheduler) TaskStatus(key task.Key) (Status, bool) {
	st, ok := s.status[key]
	return st, ok
}

// Enqueue registers a batch of task specs as one new resolver. Tasks whose
// identity is already tracked are deduplicated. Dependencies may point
// within the batch or at already-terminal tracked tasks; a dependency on a
// failed or blocked ancestor blocks the new task immediately.
func (s *Scheduler) Enqueue(ctx context.Context, specs []task.Spec) error {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID)

	// First pass: construct tasks, dropping duplicates of already-tracked or
	// earlier-in-batch identities.
	batch := make(map[task.Key]*task.Task)
	for _, spec := range specs {
		t := task.New(spec)
		key := t.Key()
		if _, tracked := s.status[key]; tracked {
			logger.Debug("Deduplicating already-tracked task.", "task", key)
			continue
		}
		if _, dup := batch[key]; dup {
			logger.Debug("Deduplicating task within batch.", "task", key)
			continue
		}
		batch[key] = t
	}
	if len(batch) == 0 {
		return nil
	}

	// Second pass: resolve dependency edges against the batch and the
	// already-tracked record.
	graph := make(map[task.Key][]task.Key, len(batch))
	preblocked := make(map[task.Key]error)
	for key, t := range batch {
		var deps []task.Key
		for _, dep := range t.DependsOn() {
			if _, inBatch := batch[dep]; inBatch {
				deps = append(deps, dep)
				continue
			}
			st, tracked := s.status[dep]
			if !tracked {
				return fmt.Errorf("task %s depends on unknown task %s", key, dep)
			}
			switch st {
			case StatusSucceeded:
				// Already satisfied; no edge needed.
			case StatusFailed, StatusBlocked:
				preblocked[key] = fmt.Errorf("blocked by upstream failure of %s", dep)
			default:
				// A dependency on in-flight work from another resolver is a
				// modeling error: discovery only runs after its originating
				// task succeeded, so anything else it references must be
				// terminal by now.
				return fmt.Errorf("task %s depends on in-flight task %s owned by another batch", key, dep)
			}
		}
		graph[key] = deps
	}

	// Propagate blocking through intra-batch edges to a fixpoint.
	for changed := true; changed; {
		changed = false
		for key, deps := range graph {
			if _, blocked := preblocked[key]; blocked {
				continue
			}
			for _, dep := range deps {
				if _, blocked := preblocked[dep]; blocked {
					preblocked[key] = fmt.Errorf("blocked by upstream failure of %s", dep)
					changed = true
					break
				}
			}
		}
	}
	for key, err := range preblocked {
		logger.Warn("Task blocked before release.", "task", key, "error", err)
		s.status[key] = StatusBlocked
		s.failures[key] = err
		s.tasks[key] = batch[key]
		delete(graph, key)
	}
	if len(graph) == 0 {
		return nil
	}

	// Blocked tasks were removed from the graph; drop dangling edges to them.
	for key, deps := range graph {
		kept := deps[:0]
		for _, dep := range deps {
			if _, ok := graph[dep]; ok {
				kept = append(kept, dep)
			}
		}
		graph[key] = kept
	}

	res, err := resolver.New(graph)
	if err != nil {
		return fmt.Errorf("preparing resolver: %w", err)
	}

	for key := range graph {
		s.status[key] = StatusPending
		s.tasks[key] = batch[key]
		s.owner[key] = res
	}
	s.active = append(s.active, res)
	logger.Debug("Batch enqueued.", "tasks", len(graph), "active_resolvers", len(s.active))
	return nil
}

// Run drives all enqueued batches to completion and returns the run summary.
// A single task failure never aborts the run; the coordinator keeps driving
// the remaining resolvers and reports failures in the summary.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID)
	logger.Debug("Scheduler run starting.", "resolvers", len(s.active))
	defer close(s.done)

	for {
		s.release(ctx)
		s.dispatch(ctx)
		s.reap(ctx)

		if len(s.active) == 0 && s.inflight == 0 {
			break
		}
		if s.inflight == 0 {
			// Active resolvers but nothing running and nothing released:
			// every remaining task is unreachable. Guard against a hang.
			logger.Error("Scheduler stalled with no tasks in flight; aborting run.",
				"active_resolvers", len(s.active))
			return s.summary(), fmt.Errorf("scheduler deadlock: %d resolver(s) active with no runnable tasks", len(s.active))
		}

		var stallC <-chan time.Time
		var stallTimer *time.Timer
		if s.cfg.StallTimeout > 0 {
			stallTimer = time.NewTimer(s.cfg.StallTimeout)
			stallC = stallTimer.C
		}

		select {
		case rep := <-s.ch.Status:
			s.handleReport(ctx, rep)
		case env := <-s.retryC:
			s.pending = append(s.pending, env)
		case <-stallC:
			s.failStalled(ctx)
		case <-ctx.Done():
			if stallTimer != nil {
				stallTimer.Stop()
			}
			logger.Warn("Scheduler run canceled.", "error", ctx.Err())
			return s.summary(), ctx.Err()
		}
		if stallTimer != nil {
			stallTimer.Stop()
		}
	}

	summary := s.summary()
	logger.Info("Scheduler run finished.",
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"blocked", len(summary.Blocked),
	)
	return summary, summary.Err()
}

// release pulls ready tasks from every active resolver onto the pending
// queue. Released tasks count as in flight from here on.
func (s *Scheduler) release(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID)
	for _, res := range s.active {
		for _, key := range res.Ready() {
			s.status[key] = StatusReady
			s.attempts[key] = 1
			s.inflight++
			logger.Debug("Releasing task.", "task", key)
			s.pending = append(s.pending, dispatch.Envelope{Task: s.tasks[key], Attempt: 1})
		}
	}
}

// dispatch feeds pending envelopes into the bounded work channel. It never
// blocks on a full channel alone: while waiting for a slot it keeps draining
// status reports, so workers always have room to hand in results. Blocking
// on the work channel exclusively deadlocks once the status buffer fills on
// a wide ready batch.
func (s *Scheduler) dispatch(ctx context.Context) {
	for len(s.pending) > 0 {
		env := s.pending[0]
		select {
		case s.ch.Work <- env:
			s.pending = s.pending[1:]
			s.status[env.Task.Key()] = StatusRunning
		case rep := <-s.ch.Status:
			s.handleReport(ctx, rep)
		case <-ctx.Done():
			return
		}
	}
}

// handleReport applies one completion report to the status record and the
// owning resolver.
func (s *Scheduler) handleReport(ctx context.Context, rep dispatch.Report) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID, "task", rep.Key)

	if s.status[rep.Key] != StatusRunning || rep.Attempt != s.attempts[rep.Key] {
		// Stale report from a superseded attempt (e.g. the stall watchdog
		// re-released the task and the original worker surfaced late).
		logger.Debug("Ignoring stale status report.", "attempt", rep.Attempt)
		return
	}

	t := s.tasks[rep.Key]
	res := s.owner[rep.Key]

	if rep.Err == nil {
		s.inflight--
		s.status[rep.Key] = StatusSucceeded
		res.MarkDone(rep.Key)
		logger.Debug("Task succeeded.", "attempt", rep.Attempt)
		s.discover(ctx, t, rep)
		return
	}

	retries := t.Retries()
	if retries == 0 {
		retries = s.cfg.DefaultRetries
	}
	if task.IsTransient(rep.Err) && rep.Attempt <= retries {
		attempt := rep.Attempt + 1
		s.attempts[rep.Key] = attempt
		logger.Warn("Transient failure, re-releasing task.",
			"attempt", rep.Attempt, "next_attempt", attempt, "error", rep.Err)
		env := dispatch.Envelope{Task: t, Attempt: attempt}
		if s.cfg.RetryDelay > 0 {
			// The task stays accounted as in flight while the timer runs. The
			// timer hands the envelope back to the coordinator rather than to
			// the work channel, which may already be closed if the run ends
			// before the delay elapses.
			time.AfterFunc(s.cfg.RetryDelay, func() {
				select {
				case s.retryC <- env:
				case <-s.done:
				}
			})
		} else {
			s.pending = append(s.pending, env)
		}
		return
	}

	s.inflight--
	s.status[rep.Key] = StatusFailed
	s.failures[rep.Key] = rep.Err
	logger.Error("Task failed.", "attempt", rep.Attempt, "error", rep.Err)

	for _, blocked := range res.MarkFailed(rep.Key) {
		s.status[blocked] = StatusBlocked
		s.failures[blocked] = fmt.Errorf("blocked by upstream failure of %s", rep.Key)
		logger.Warn("Blocking dependent task due to upstream failure.", "blocked", blocked)
	}
}

// discover invokes the kind's downstream-discovery hook for a succeeded task
// and enqueues any resulting subgraph as a new resolver.
//
// The hook runs synchronously on the coordinator: a slow Discover stalls all
// scheduling, not just its own subgraph. Kinds that need expensive
// enumeration should do it inside Execute on a worker and keep Discover to
// unpacking the already-computed output (see modules/collect_urls).
func (s *Scheduler) discover(ctx context.Context, t *task.Task, rep dispatch.Report) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID, "task", rep.Key)

	kind, ok := s.reg.Kind(t.Kind())
	if !ok || kind.Discover == nil {
		return
	}

	specs, err := kind.Discover(ctx, rep.Output)
	if err != nil {
		// The task itself succeeded; a discovery failure loses only the
		// downstream expansion.
		logger.Error("Downstream discovery failed.", "error", err)
		return
	}
	if len(specs) == 0 {
		return
	}

	logger.Info("Discovered downstream tasks.", "count", len(specs))
	if err := s.Enqueue(ctx, specs); err != nil {
		logger.Error("Failed to enqueue discovered tasks.", "error", err)
	}
}

// failStalled converts every in-flight task into a synthetic transient
// failure after the stall watchdog fires. A lost worker never reports, so
// this is the only way its task re-enters scheduling; if the worker was
// merely slow, the late report is dropped as stale and the re-executed
// attempt wins (task execution is contractually idempotent).
func (s *Scheduler) failStalled(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID)
	logger.Warn("No status report within stall timeout; presuming in-flight workers lost.",
		"stall_timeout", s.cfg.StallTimeout, "inflight", s.inflight)

	var running []task.Key
	for key, st := range s.status {
		if st == StatusRunning {
			running = append(running, key)
		}
	}
	for _, key := range running {
		s.handleReport(ctx, dispatch.Report{
			Key:     key,
			Attempt: s.attempts[key],
			Err: task.Transient(fmt.Errorf(
				"no status report within %s; worker presumed lost", s.cfg.StallTimeout)),
		})
	}
}

// reap drops exhausted resolvers from the active set.
func (s *Scheduler) reap(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("run_id", s.runID)
	kept := s.active[:0]
	for _, res := range s.active {
		if res.Exhausted() {
			logger.Debug("Resolver exhausted, removing from active set.")
			continue
		}
		kept = append(kept, res)
	}
	s.active = kept
}

// Package dispatch provides the channel pair decoupling the scheduler's
// coordinating loop from the worker pool: a bounded work channel carrying
// ready tasks to workers, and a status channel carrying completion reports
// back.
//
// Both channels are plain Go channels and are safe for concurrent
// multi-producer/multi-consumer use. The work channel blocks the producer
// when full, giving the coordinator bounded backpressure; workers block when
// it is empty. Workers never see scheduler state, only Envelope values.
package dispatch

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/pipedag/pipedag/internal/task"
)

// Envelope is one dispatched execution attempt of a task.
type Envelope struct {
	Task *task.Task
	// Attempt is 1 for the first execution and increments on each
	// transient-failure re-release.
	Attempt int
}

// Report is a worker's account of one finished execution attempt.
type Report struct {
	Key     task.Key
	Attempt int
	// Output holds the task's result on success; cty.NilVal otherwise.
	Output cty.Value
	// Err is nil on success. Classified via task.IsTransient on failure.
	Err error
}

// Channels bundles the two directions of scheduler/worker communication.
type Channels struct {
	// Work carries ready tasks from the coordinator to the workers.
	Work chan Envelope
	// Status carries completion reports from the workers back. It is
	// buffered generously so workers are never blocked on reporting.
	Status chan Report
}

// New creates the channel pair. The buffer bounds the work queue; status
// reports get the same headroom plus slack for retried attempts.
func New(buffer int) *Channels {
	if buffer < 1 {
		buffer = 1
	}
	return &Channels{
		Work:   make(chan Envelope, buffer),
		Status: make(chan Report, buffer*2),
	}
}

// CloseWork signals workers that no further tasks will be dispatched.
// Only the coordinator may call it, exactly once, after its loop exits.
func (c *Channels) CloseWork() {
	close(c.Work)
}

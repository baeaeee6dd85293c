// Package task defines the unit of work scheduled by pipedag: a pipeline
// step kind with bound parameters, a deterministic identity, and declared
// upstream dependencies.
package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dchest/siphash"
	"github.com/zclconf/go-cty/cty"
)

// Identity hashing keys. Fixed so that the same kind+params always produce
// the same Key across processes and runs.
const (
	identityK0 uint64 = 0x7069706564616700
	identityK1 uint64 = 0x746173636865646c
)

// Key is the unique, deterministic identifier of a task. Two tasks with the
// same kind and the same bound parameters have the same Key, regardless of
// where or when they were constructed.
type Key string

// Spec describes a task as declared in a pipeline definition or produced by
// downstream discovery. It is pure data; the executable behavior lives in
// the registry under Kind.
type Spec struct {
	// Kind names the pipeline step implementation registered for this task.
	Kind string
	// Name is the human-readable instance name from the configuration. It is
	// not part of the task's identity.
	Name string
	// Params are the bound parameters. They determine the task's identity
	// together with Kind.
	Params map[string]cty.Value
	// DependsOn lists the identities of upstream tasks that must succeed
	// before this task may run.
	DependsOn []Key
	// Retries is the transient-failure budget: how many times the scheduler
	// may re-release this task after a transient failure. Zero means no retry.
	Retries int
}

// Task is an immutable, fully identified unit of work ready for dispatch.
type Task struct {
	spec Spec
	key  Key
}

// New constructs a Task from a spec, computing its identity once.
func New(spec Spec) *Task {
	return &Task{spec: spec, key: Identity(spec.Kind, spec.Params)}
}

// Key returns the task's deterministic identity.
func (t *Task) Key() Key { return t.key }

// Kind returns the registered step kind this task executes.
func (t *Task) Kind() string { return t.spec.Kind }

// Name returns the instance name from the configuration.
func (t *Task) Name() string { return t.spec.Name }

// Params returns the bound parameters. Callers must not mutate the map.
func (t *Task) Params() map[string]cty.Value { return t.spec.Params }

// DependsOn returns the identities of the task's declared dependencies.
func (t *Task) DependsOn() []Key { return t.spec.DependsOn }

// Retries returns the task's transient-failure budget.
func (t *Task) Retries() int { return t.spec.Retries }

// Identity derives the deterministic Key for a kind and parameter set. The
// canonical encoding sorts parameter names so map iteration order cannot
// leak into the hash.
func Identity(kind string, params map[string]cty.Value) Key {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(kind)
	for _, name := range names {
		sb.WriteByte(0)
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(params[name].GoString())
	}

	sum := siphash.Hash(identityK0, identityK1, []byte(sb.String()))
	return Key(fmt.Sprintf("task.%s.%016x", kind, sum))
}

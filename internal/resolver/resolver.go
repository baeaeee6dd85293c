// Package resolver implements topological release of tasks from a fixed
// dependency graph. A resolver is single-use: it is constructed from one
// graph, validated for acyclicity up front, and driven from "prepared" to
// "exhausted" by the scheduler through Ready/MarkDone/MarkFailed.
//
// The resolver is not safe for concurrent use. It is owned and mutated
// exclusively by the scheduler's coordinating loop.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipedag/pipedag/internal/task"
)

// CycleError reports a dependency cycle detected during construction. No
// task is ever released from a graph containing a cycle.
type CycleError struct {
	// Keys enumerates the tasks involved in the detected cycle, in
	// traversal order.
	Keys []task.Key
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = string(k)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// Resolver releases the tasks of one dependency graph in an order that never
// violates a dependency, using Kahn-style in-degree tracking.
type Resolver struct {
	// indegree counts unresolved dependencies per task. A task is ready when
	// its count reaches zero.
	indegree map[task.Key]int
	// dependents maps a task to the tasks that declared it as a dependency.
	dependents map[task.Key][]task.Key
	// released marks tasks already handed out by Ready, completed, or
	// permanently blocked. A released task is never returned again.
	released map[task.Key]bool
	// remaining counts tasks that have not yet reached a terminal state.
	remaining int
}

// New validates the graph and prepares a resolver for it. The graph maps
// each task to the set of tasks it depends on; every referenced dependency
// must itself be a graph entry. A cyclic graph fails with *CycleError before
// any task can be released.
func New(graph map[task.Key][]task.Key) (*Resolver, error) {
	r := &Resolver{
		indegree:   make(map[task.Key]int, len(graph)),
		dependents: make(map[task.Key][]task.Key),
		released:   make(map[task.Key]bool, len(graph)),
		remaining:  len(graph),
	}

	for key, deps := range graph {
		r.indegree[key] = len(deps)
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on %s, which is not in the graph", key, dep)
			}
			r.dependents[dep] = append(r.dependents[dep], key)
		}
	}

	if cycle := detectCycle(graph); cycle != nil {
		return nil, &CycleError{Keys: cycle}
	}

	return r, nil
}

// Ready returns every task whose dependencies are all satisfied and that has
// not been released before. Returned tasks are considered in flight until
// MarkDone or MarkFailed is called for them. Results are sorted for
// deterministic dispatch order among simultaneously ready tasks.
func (r *Resolver) Ready() []task.Key {
	var ready []task.Key
	for key, degree := range r.indegree {
		if degree == 0 && !r.released[key] {
			r.released[key] = true
			ready = append(ready, key)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	return ready
}

// MarkDone records the successful completion of a task, unblocking any
// dependents whose remaining dependencies are also satisfied.
func (r *Resolver) MarkDone(key task.Key) {
	if _, ok := r.indegree[key]; !ok {
		return
	}
	r.remaining--
	for _, dep := range r.dependents[key] {
		r.indegree[dep]--
	}
}

// MarkFailed records the terminal failure of a task. All transitive
// dependents are permanently blocked and will never be released; the blocked
// set is returned (sorted, excluding the failed task itself) so the caller
// can report them rather than silently hanging.
func (r *Resolver) MarkFailed(key task.Key) []task.Key {
	if _, ok := r.indegree[key]; !ok {
		return nil
	}
	r.remaining--

	var blocked []task.Key
	var block func(k task.Key)
	block = func(k task.Key) {
		for _, dep := range r.dependents[k] {
			if r.released[dep] {
				continue
			}
			r.released[dep] = true
			r.remaining--
			blocked = append(blocked, dep)
			block(dep)
		}
	}
	block(key)

	sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })
	return blocked
}

// Exhausted reports whether every task in the graph has reached a terminal
// state (succeeded, failed, or permanently blocked).
func (r *Resolver) Exhausted() bool {
	return r.remaining == 0
}

// Has reports whether the given task belongs to this resolver's graph.
func (r *Resolver) Has(key task.Key) bool {
	_, ok := r.indegree[key]
	return ok
}

// detectCycle checks the graph for cycles using depth-first search over the
// dependency edges. It returns the members of the first cycle found, or nil.
func detectCycle(graph map[task.Key][]task.Key) []task.Key {
	visiting := make(map[task.Key]bool)
	visited := make(map[task.Key]bool)
	var stack []task.Key

	var visit func(key task.Key) []task.Key
	visit = func(key task.Key) []task.Key {
		visiting[key] = true
		stack = append(stack, key)

		for _, dep := range graph[key] {
			if visiting[dep] {
				// Slice the stack back to the first occurrence of dep to
				// report only the cycle members, not the path leading in.
				for i, k := range stack {
					if k == dep {
						return append(append([]task.Key{}, stack[i:]...), dep)
					}
				}
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, key)
		visited[key] = true
		return nil
	}

	keys := make([]task.Key, 0, len(graph))
	for key := range graph {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if !visited[key] {
			if cycle := visit(key); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

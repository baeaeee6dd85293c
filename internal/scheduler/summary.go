package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipedag/pipedag/internal/task"
)

// Summary is the final account of a scheduler run: which tasks succeeded,
// which failed, and which were blocked by upstream failures, with per-task
// errors. Runs finish with a summary rather than an all-or-nothing result.
type Summary struct {
	RunID     string
	Succeeded []task.Key
	Failed    []task.Key
	Blocked   []task.Key
	// Errors maps failed and blocked tasks to their recorded error.
	Errors map[task.Key]error
}

// Err returns nil for a fully successful run, otherwise an error naming the
// failed tasks and wrapping the first root-cause failure. Blocked tasks are
// symptoms, not causes, and are excluded from the root-cause search.
func (s *Summary) Err() error {
	if len(s.Failed) == 0 {
		return nil
	}
	names := make([]string, len(s.Failed))
	for i, k := range s.Failed {
		names[i] = string(k)
	}
	return fmt.Errorf("run %s failed for %s: %w", s.RunID, strings.Join(names, ", "), s.Errors[s.Failed[0]])
}

// summary snapshots the status record into a Summary.
func (s *Scheduler) summary() *Summary {
	out := &Summary{
		RunID:  s.runID,
		Errors: make(map[task.Key]error, len(s.failures)),
	}
	for key, st := range s.status {
		switch st {
		case StatusSucceeded:
			out.Succeeded = append(out.Succeeded, key)
		case StatusFailed:
			out.Failed = append(out.Failed, key)
		case StatusBlocked:
			out.Blocked = append(out.Blocked, key)
		}
	}
	for key, err := range s.failures {
		out.Errors[key] = err
	}

	sortKeys := func(keys []task.Key) {
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	}
	sortKeys(out.Succeeded)
	sortKeys(out.Failed)
	sortKeys(out.Blocked)
	return out
}

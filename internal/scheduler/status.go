package scheduler

// Status is the coordinator's view of one task's lifecycle. Transitions only
// move forward: Pending -> Ready -> Running -> Succeeded | Failed, with
// Blocked as the terminal state of tasks whose dependency chain carries a
// failed ancestor.
type Status int

const (
	// StatusPending means the task is tracked but has unmet dependencies.
	StatusPending Status = iota
	// StatusReady means the resolver has released the task and the
	// coordinator is handing it to the work channel.
	StatusReady
	// StatusRunning means the task has been dispatched and the coordinator
	// is waiting for its status report.
	StatusRunning
	// StatusSucceeded means the task completed and its dependents were
	// unblocked.
	StatusSucceeded
	// StatusFailed means the task failed terminally or exhausted its retry
	// budget.
	StatusFailed
	// StatusBlocked means an upstream task failed; the task was never
	// released and never will be.
	StatusBlocked
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

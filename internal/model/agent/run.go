package agent

// RunStatus mirrors the status field reported by the remote run API.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Succeeded reports whether the run finished with an answer.
func (s RunStatus) Succeeded() bool {
	return s == RunCompleted
}

// Failed reports whether the run reached a terminal failure state.
func (s RunStatus) Failed() bool {
	switch s {
	case RunFailed, RunCancelled, RunExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status change is expected.
func (s RunStatus) Terminal() bool {
	return s.Succeeded() || s.Failed()
}

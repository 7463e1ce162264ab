package pipeline

// State identifies one stage of a pipeline run.
type State int

// Pipeline stages, in run order. Failed is terminal and reachable from
// any stage before Done.
const (
	// StateIdle is the state of a pipeline that has not started.
	StateIdle State = iota

	// StateVerifyingIntegrity covers hashing the untouched source.
	StateVerifyingIntegrity

	// StateAcquiring covers creating and re-verifying the working copy.
	StateAcquiring

	// StateAnalyzing covers running the analyzer registry on the copy.
	StateAnalyzing

	// StateConsolidating covers merging analyzer results into the report.
	StateConsolidating

	// StateDone is the terminal state of a successful run.
	StateDone

	// StateFailed is the terminal state of an aborted run.
	StateFailed
)

// String returns the snake_case stage name used in logs and traces.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifyingIntegrity:
		return "verifying_integrity"
	case StateAcquiring:
		return "acquiring"
	case StateAnalyzing:
		return "analyzing"
	case StateConsolidating:
		return "consolidating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

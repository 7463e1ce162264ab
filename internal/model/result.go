package model

import "time"

// Status is the terminal state of a single analyzer invocation.
type Status string

const (
	// StatusSuccess means the analyzer completed and its findings are valid.
	StatusSuccess Status = "success"

	// StatusFailed means the analyzer hit an internal fault or an external
	// tool error. The failure is recorded here and never aborts the run.
	StatusFailed Status = "failed"

	// StatusTimeout means the analyzer exceeded its per-analyzer deadline
	// and its work was cancelled.
	StatusTimeout Status = "timeout"
)

// AnalyzerResult is the outcome of one analyzer run. The orchestrator
// creates exactly one per enabled analyzer per run and hands it, unmodified,
// to the consolidator. A result always exists even when the analyzer
// crashed or timed out.
type AnalyzerResult struct {
	// Analyzer is the registry name of the analyzer that produced this
	// result. It is the key of the report's analysis mapping.
	Analyzer string `json:"analyzer"`

	// Status records whether the analyzer completed, failed, or timed out.
	Status Status `json:"status"`

	// Suspicion is the analyzer's manipulation-evidence level.
	// It is SuspicionNone unless Status is StatusSuccess.
	Suspicion Suspicion `json:"suspicion"`

	// Findings holds technique-specific structured data. Keys and value
	// shapes differ per analyzer and are documented on each analyzer type.
	Findings map[string]any `json:"findings,omitempty"`

	// ErrorMessage describes the fault. Present iff Status is not success.
	ErrorMessage string `json:"error_message,omitempty"`

	// StartedAt is when the analyzer began executing.
	StartedAt time.Time `json:"started_at"`

	// DurationMS is the wall-clock run time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// NewFailedResult builds the result recorded when an analyzer faults.
func NewFailedResult(analyzer string, startedAt time.Time, err error) *AnalyzerResult {
	msg := "unknown analyzer fault"
	if err != nil {
		msg = err.Error()
	}
	return &AnalyzerResult{
		Analyzer:     analyzer,
		Status:       StatusFailed,
		Suspicion:    SuspicionNone,
		ErrorMessage: msg,
		StartedAt:    startedAt,
		DurationMS:   time.Since(startedAt).Milliseconds(),
	}
}

// NewTimeoutResult builds the result recorded when an analyzer exceeds
// its deadline.
func NewTimeoutResult(analyzer string, startedAt time.Time, limit time.Duration) *AnalyzerResult {
	return &AnalyzerResult{
		Analyzer:     analyzer,
		Status:       StatusTimeout,
		Suspicion:    SuspicionNone,
		ErrorMessage: "analyzer exceeded time limit of " + limit.String(),
		StartedAt:    startedAt,
		DurationMS:   time.Since(startedAt).Milliseconds(),
	}
}

// Succeeded reports whether the analyzer completed normally.
func (r *AnalyzerResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

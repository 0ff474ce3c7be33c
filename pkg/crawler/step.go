package crawler

import (
	"context"
	"time"
)

// Canonical step names. The plan is built from these and the session store
// computes progress over them.
const (
	StepNavigate        = "navigate"
	StepWaitPageLoad    = "wait_page_load"
	StepSnapshotInitial = "snapshot_initial"
	StepClickExpand     = "click_expand"
	StepWaitContentLoad = "wait_content_load"
	StepSnapshotFinal   = "snapshot_final"
	StepScreenshot      = "screenshot"
)

// CanonicalSteps lists the full pipeline in execution order.
var CanonicalSteps = []string{
	StepNavigate,
	StepWaitPageLoad,
	StepSnapshotInitial,
	StepClickExpand,
	StepWaitContentLoad,
	StepSnapshotFinal,
	StepScreenshot,
}

// Failure reason tags stamped into StepResult metadata so the orchestrator
// and tests can assert on cause.
const (
	// FailurePrecondition: PreExecute returned false, no backend call made
	FailurePrecondition = "precondition"

	// FailureBackend: the backend reported success=false
	FailureBackend = "backend"

	// FailureException: the call itself failed (timeout, transport, panic)
	FailureException = "exception"
)

// StepResult is the outcome of one execution attempt of one step. Each step
// stamps its own name and a timestamp into Metadata. Only the final attempt's
// result is retained per step name.
type StepResult struct {
	Success  bool
	Data     any
	Error    string
	Metadata map[string]any
}

// FailureReason returns the failure_reason metadata tag, or "" for a
// successful result.
func (r *StepResult) FailureReason() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	reason, _ := r.Metadata["failure_reason"].(string)
	return reason
}

// Skipped reports whether an optional step recorded itself as skipped.
func (r *StepResult) Skipped() bool {
	if r == nil || r.Metadata == nil {
		return false
	}
	skipped, _ := r.Metadata["skipped"].(bool)
	return skipped
}

// Step is one unit of work against the remote backend. Steps are immutable
// once constructed and owned by the plan for the lifetime of one session.
//
// The step set is closed: Navigate, Wait, Snapshot, Click and Screenshot.
type Step interface {
	Name() string
	Description() string

	// Retryable reports whether a failed attempt may be retried. A failed
	// non-retryable step aborts the whole session.
	Retryable() bool

	// Timeout bounds a single execution attempt.
	Timeout() time.Duration

	// PreExecute gates execution. Returning false fails the step
	// immediately without a backend call.
	PreExecute(cc *Context) bool

	// Execute performs the backend operation and returns its result.
	Execute(ctx context.Context, cc *Context) *StepResult

	// PostExecute observes the result after every attempt, successful or
	// not. Used by the snapshot step to derive session metadata.
	PostExecute(cc *Context, result *StepResult)
}

// baseStep carries the identity shared by all concrete steps and provides
// the default PreExecute/PostExecute behavior.
type baseStep struct {
	name        string
	description string
	retryable   bool
	timeout     time.Duration
}

func (s baseStep) Name() string            { return s.name }
func (s baseStep) Description() string     { return s.description }
func (s baseStep) Retryable() bool         { return s.retryable }
func (s baseStep) Timeout() time.Duration  { return s.timeout }
func (s baseStep) PreExecute(*Context) bool { return true }

func (s baseStep) PostExecute(*Context, *StepResult) {}

// newResult builds a StepResult stamped with the step name and timestamp.
func newResult(step string, success bool, data any, errMsg string) *StepResult {
	return &StepResult{
		Success: success,
		Data:    data,
		Error:   errMsg,
		Metadata: map[string]any{
			"step":      step,
			"timestamp": time.Now(),
		},
	}
}

// failResult builds a failed StepResult tagged with a failure reason.
func failResult(step, reason, errMsg string) *StepResult {
	r := newResult(step, false, nil, errMsg)
	r.Metadata["failure_reason"] = reason
	return r
}

// resultFromTool normalizes a backend ToolResult into a StepResult.
func resultFromTool(step string, tr ToolResult) *StepResult {
	if !tr.Success {
		r := failResult(step, FailureBackend, tr.Error)
		for k, v := range tr.Metadata {
			r.Metadata[k] = v
		}
		return r
	}
	r := newResult(step, true, tr.Data, "")
	for k, v := range tr.Metadata {
		r.Metadata[k] = v
	}
	return r
}

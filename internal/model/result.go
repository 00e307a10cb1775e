package model

// Task run status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Sub-operation stages recorded in diagnostics.
const (
	StageClassify   = "classify"
	StageCategorize = "categorize"
)

// Diagnostic records a failed per-email sub-call inside a list_recent step.
type Diagnostic struct {
	MessageID string `json:"message_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// StepOutcome is the recorded result of one executed step. Exactly one of
// Result and Error is meaningful; use Succeeded and Failed to build it.
type StepOutcome struct {
	Step        StepDescriptor `json:"step"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`

	failed bool
	err    error
}

// Succeeded builds a successful outcome carrying payload.
func Succeeded(step StepDescriptor, payload any, diags []Diagnostic) StepOutcome {
	return StepOutcome{Step: step, Result: payload, Diagnostics: diags}
}

// Failed builds a failed outcome. A nil err still yields a failure with a
// generic description.
func Failed(step StepDescriptor, err error, diags []Diagnostic) StepOutcome {
	desc := "step failed"
	if err != nil && err.Error() != "" {
		desc = err.Error()
	}
	return StepOutcome{Step: step, Error: desc, Diagnostics: diags, failed: true, err: err}
}

// Err returns the error a failed outcome was built from, for errors.Is
// and errors.As checks. It is nil for successes and for outcomes decoded
// from JSON.
func (o StepOutcome) Err() error {
	return o.err
}

// IsFailure reports whether the outcome is a failure.
func (o StepOutcome) IsFailure() bool {
	return o.failed || o.Error != ""
}

// CategorizeResult is the payload of a successful categorize step.
type CategorizeResult struct {
	MessageID  string     `json:"message_id"`
	Categories []Category `json:"categories"`
	Applied    bool       `json:"applied"`
}

// TaskResult aggregates one task run. It is built once by NewTaskResult
// and not modified afterwards.
type TaskResult struct {
	Plan    string        `json:"plan"`
	Results []StepOutcome `json:"results"`
	Status  string        `json:"status"`
}

// NewTaskResult assembles a TaskResult and derives its status: failed iff
// at least one outcome is a failure.
func NewTaskResult(plan string, outcomes []StepOutcome) *TaskResult {
	if outcomes == nil {
		outcomes = []StepOutcome{}
	}
	status := StatusSuccess
	for _, o := range outcomes {
		if o.IsFailure() {
			status = StatusFailed
			break
		}
	}
	return &TaskResult{Plan: plan, Results: outcomes, Status: status}
}

// Failures returns the failed outcomes in order.
func (r *TaskResult) Failures() []StepOutcome {
	var out []StepOutcome
	for _, o := range r.Results {
		if o.IsFailure() {
			out = append(out, o)
		}
	}
	return out
}

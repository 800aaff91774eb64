package harness

import "github.com/roach88/ubi/internal/ir"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
	EventError      = "error"
)

// TraceEvent is one line of a scenario trace. Invocations carry the request,
// completions the outcome, and error events a request the engine refused.
type TraceEvent struct {
	Type       string      `json:"type"`
	FlowToken  string      `json:"flow_token,omitempty"`
	Action     string      `json:"action,omitempty"`
	Caller     string      `json:"caller,omitempty"`
	At         int64       `json:"at,omitempty"`
	Args       ir.IRObject `json:"args,omitempty"`
	Outcome    string      `json:"outcome,omitempty"`
	Code       string      `json:"code,omitempty"`
	Recipients []string    `json:"recipients,omitempty"`
	Seq        int64       `json:"seq"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// StateHash digests the final tables.
	StateHash string `json:"state_hash"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends an invocation.
func (r *Result) AddInvocationTrace(inv ir.Invocation) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      EventInvocation,
		FlowToken: inv.FlowToken,
		Action:    inv.Action,
		Caller:    inv.Caller,
		At:        inv.Time,
		Args:      inv.Args,
		Seq:       inv.Seq,
	})
}

// AddCompletionTrace appends a completion and who was notified.
func (r *Result) AddCompletionTrace(comp ir.Completion, recipients []string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       EventCompletion,
		Outcome:    string(comp.Outcome),
		Code:       comp.Code,
		Recipients: recipients,
		Seq:        comp.Seq,
	})
}

// AddErrorTrace appends a request the engine refused before execution.
func (r *Result) AddErrorTrace(action, caller, code string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventError,
		Action: action,
		Caller: caller,
		Code:   code,
	})
}

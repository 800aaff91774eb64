package ir

// Version is written on every invocation so a log can be matched to the
// encoding that produced it.
const Version = "1"

// Outcome is how an invocation ended.
type Outcome string

const (
	// OutcomeOK means the action committed.
	OutcomeOK Outcome = "ok"
	// OutcomeRejected means the action failed and left no state behind.
	OutcomeRejected Outcome = "rejected"
)

// Invocation is one submitted action.
type Invocation struct {
	ID        string   `json:"id"`
	FlowToken string   `json:"flow_token"`
	Action    string   `json:"action"`
	Args      IRObject `json:"args"`
	Seq       int64    `json:"seq"`

	// Time is the block time in microseconds the action ran at.
	Time int64 `json:"time"`

	// Caller is the identity whose authority accompanied the action.
	Caller string `json:"caller"`

	IRVersion string `json:"ir_version"`
}

// Completion records the result of an invocation. Code and Message are
// empty for OutcomeOK.
type Completion struct {
	ID           string  `json:"id"`
	InvocationID string  `json:"invocation_id"`
	Outcome      Outcome `json:"outcome"`
	Code         string  `json:"code,omitempty"`
	Message      string  `json:"message,omitempty"`
	Seq          int64   `json:"seq"`
}

// OK reports whether the invocation committed.
func (c Completion) OK() bool {
	return c.Outcome == OutcomeOK
}

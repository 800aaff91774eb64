package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/params"
)

// Scenario is a scripted run against a fresh ledger.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Contract is the account the ledger runs under. Default "ubi".
	Contract string `yaml:"contract,omitempty"`

	// Params is CUE source unified with the params schema. Empty means
	// the production defaults.
	Params string `yaml:"params,omitempty"`

	// Accounts limits which accounts exist. Empty means every name does.
	Accounts []string `yaml:"accounts,omitempty"`

	// FlowToken pins every action to one flow. Empty numbers flows
	// flow-0001, flow-0002, and so on.
	FlowToken string `yaml:"flow_token,omitempty"`

	// Setup runs before the steps; every setup action must commit.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps is the flow under test.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action submission.
type Step struct {
	Action string `yaml:"action"`
	Caller string `yaml:"caller"`

	// At sets the block time, as an offset from zero. It may not move
	// the clock backwards.
	At string `yaml:"at,omitempty"`

	// Advance moves the block time forward before the action runs.
	Advance string `yaml:"advance,omitempty"`

	Args map[string]string `yaml:"args"`

	// Expect is checked against the completion. Nil means the action
	// must commit.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause describes how a step should end.
type ExpectClause struct {
	// Outcome is "ok" or "rejected". Empty means rejected when Code is
	// set and ok otherwise.
	Outcome string `yaml:"outcome,omitempty"`

	// Code is the ledger error code of a rejection. Empty with a rejected
	// outcome matches any code.
	Code string `yaml:"code,omitempty"`

	// Error is the engine error code of a request that never executed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// trace_contains, trace_count
	Action string            `yaml:"action,omitempty"`
	Args   map[string]string `yaml:"args,omitempty"`
	Count  int               `yaml:"count,omitempty"`

	// trace_order
	Actions []string `yaml:"actions,omitempty"`

	// final_state
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// balance
	Owner  string `yaml:"owner,omitempty"`
	Issuer string `yaml:"issuer,omitempty"`
	Equals string `yaml:"equals,omitempty"`

	// issuer
	Identity string `yaml:"identity,omitempty"`

	// edge
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Expect holds field values for final_state, issuer and edge.
	// Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertBalance       = "balance"
	AssertIssuer        = "issuer"
	AssertEdge          = "edge"
	AssertReplay        = "replay"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario is LoadScenario for in-memory YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Contract != "" {
		if _, err := ledger.ParseName(s.Contract); err != nil {
			return fmt.Errorf("contract: %w", err)
		}
	}
	for i, a := range s.Accounts {
		if _, err := ledger.ParseName(a); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	if s.Params != "" {
		if _, err := params.Parse(s.Name+".params.cue", []byte(s.Params)); err != nil {
			return fmt.Errorf("params: %w", err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot have expect", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Action == "" {
		return fmt.Errorf("%s: action is required", where)
	}
	if step.Caller == "" {
		return fmt.Errorf("%s: caller is required", where)
	}
	if step.Args == nil {
		return fmt.Errorf("%s: args is required (use empty map if no args)", where)
	}
	if step.At != "" && step.Advance != "" {
		return fmt.Errorf("%s: at and advance are exclusive", where)
	}
	if _, err := ParseOffset(step.At); err != nil {
		return fmt.Errorf("%s.at: %w", where, err)
	}
	d, err := ParseOffset(step.Advance)
	if err != nil {
		return fmt.Errorf("%s.advance: %w", where, err)
	}
	if d < 0 {
		return fmt.Errorf("%s.advance: must not be negative", where)
	}

	if e := step.Expect; e != nil {
		switch {
		case e.Error != "" && (e.Outcome != "" || e.Code != ""):
			return fmt.Errorf("%s.expect: error excludes outcome and code", where)
		case e.Error != "":
		case e.Outcome == string(ir.OutcomeOK) && e.Code != "":
			return fmt.Errorf("%s.expect: an ok outcome has no code", where)
		case e.Outcome != "" && e.Outcome != string(ir.OutcomeOK) && e.Outcome != string(ir.OutcomeRejected):
			return fmt.Errorf("%s.expect: outcome must be ok or rejected, got %q", where, e.Outcome)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertBalance:
		if a.Owner == "" || a.Issuer == "" || a.Equals == "" {
			return fmt.Errorf("assertions[%d]: owner, issuer and equals are required for balance", index)
		}
		if _, err := ledger.ParseQuantity(a.Equals); err != nil {
			return fmt.Errorf("assertions[%d]: equals: %w", index, err)
		}
	case AssertIssuer:
		if a.Identity == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: identity and expect are required for issuer", index)
		}
	case AssertEdge:
		if a.From == "" || a.To == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: from, to and expect are required for edge", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ParseOffset parses a Go duration that may lead with a whole number of
// days, as in "30d" or "1d12h". The empty string is zero.
func ParseOffset(s string) (ledger.Duration, error) {
	if s == "" {
		return 0, nil
	}
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")

	var days int64
	if head, rest, ok := strings.Cut(body, "d"); ok {
		n, err := strconv.ParseInt(head, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count in %q", s)
		}
		days, body = n, rest
	}

	var d time.Duration
	if body != "" {
		var err error
		if d, err = time.ParseDuration(body); err != nil {
			return 0, err
		}
		if d < 0 {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
	}

	total := ledger.Duration(days)*ledger.Day + ledger.FromStd(d)
	if neg {
		total = -total
	}
	return total, nil
}

// outcome resolves the expected completion outcome.
func (e *ExpectClause) outcome() ir.Outcome {
	switch {
	case e == nil:
		return ir.OutcomeOK
	case e.Outcome != "":
		return ir.Outcome(e.Outcome)
	case e.Code != "":
		return ir.OutcomeRejected
	}
	return ir.OutcomeOK
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ubi/internal/engine"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/params"
	"github.com/roach88/ubi/internal/store"
	"github.com/roach88/ubi/internal/testutil"
)

// DefaultContract is the contract account when a scenario names none.
const DefaultContract = "ubi"

// Harness is the scenario runner. It drives the real engine with a
// deterministic block clock and flow tokens.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	contract *ledger.Contract
	account  ledger.Name
	clock    *testutil.BlockClock
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. An error means the
// scenario could not be run at all (bad params, a failing setup step, a
// store failure); expectation and assertion failures land in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	result := NewResult()

	for i, step := range scenario.Setup {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute setup[%d]: %w", i, err)
		}
		if !result.Pass {
			return nil, fmt.Errorf("failed to execute setup[%d]: %s", i, result.Errors[len(result.Errors)-1])
		}
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}

	hash, err := h.engine.StateHash()
	if err != nil {
		return nil, fmt.Errorf("hash final state: %w", err)
	}
	result.StateHash = hash

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    h.store,
		Engine:   h.engine,
		Contract: h.contract,
		Account:  h.account,
		Now:      h.clock.Now(),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	p := ledger.DefaultParams()
	if scenario.Params != "" {
		var err error
		if p, err = params.Parse(scenario.Name+".params.cue", []byte(scenario.Params)); err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
	}

	var accounts ledger.Accounts
	if len(scenario.Accounts) > 0 {
		names := make([]ledger.Name, 0, len(scenario.Accounts))
		for _, a := range scenario.Accounts {
			n, err := ledger.ParseName(a)
			if err != nil {
				return nil, fmt.Errorf("accounts: %w", err)
			}
			names = append(names, n)
		}
		accounts = ledger.NewAccountSet(names...)
	}

	contract, err := ledger.New(p, accounts)
	if err != nil {
		return nil, fmt.Errorf("build contract: %w", err)
	}

	name := scenario.Contract
	if name == "" {
		name = DefaultContract
	}
	account, err := ledger.ParseName(name)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}

	var flowGen engine.FlowTokenGenerator = engine.NewSequenceGenerator("flow")
	if scenario.FlowToken != "" {
		flowGen = testutil.NewFixedFlowGenerator(scenario.FlowToken)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.Open(ctx, st, contract, account, flowGen, engine.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Harness{
		store:    st,
		engine:   eng,
		contract: contract,
		account:  account,
		clock:    testutil.NewBlockClock(0),
		logger:   logger,
	}, nil
}

// executeStep submits one step and checks its expect clause. Expectation
// failures are recorded on result; the returned error is reserved for
// failures of the harness itself.
func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) error {
	if err := h.moveClock(step); err != nil {
		return err
	}

	args := make(ir.IRObject, len(step.Args))
	for k, v := range step.Args {
		args[k] = ir.IRString(v)
	}

	res, err := h.engine.Execute(ctx, engine.Request{
		Action: step.Action,
		Args:   args,
		Caller: step.Caller,
		Time:   h.clock.Now(),
	})
	if err != nil {
		var rt *engine.RuntimeError
		if !errors.As(err, &rt) {
			return err
		}
		result.AddErrorTrace(step.Action, step.Caller, string(rt.Code))
		switch {
		case step.Expect == nil || step.Expect.Error == "":
			result.AddError(fmt.Sprintf("%s by %s: refused: %v", step.Action, step.Caller, rt))
		case step.Expect.Error != string(rt.Code):
			result.AddError(fmt.Sprintf("%s by %s: expected engine error %s, got %s",
				step.Action, step.Caller, step.Expect.Error, rt.Code))
		}
		return nil
	}

	recipients := make([]string, len(res.Recipients))
	for i, r := range res.Recipients {
		recipients[i] = string(r)
	}
	result.AddInvocationTrace(res.Invocation)
	result.AddCompletionTrace(res.Completion, recipients)

	comp := res.Completion
	if step.Expect != nil && step.Expect.Error != "" {
		result.AddError(fmt.Sprintf("%s by %s: expected engine error %s, action executed with outcome %s",
			step.Action, step.Caller, step.Expect.Error, comp.Outcome))
		return nil
	}
	want := step.Expect.outcome()
	switch {
	case comp.Outcome != want:
		result.AddError(fmt.Sprintf("%s by %s: expected outcome %s, got %s %s %s",
			step.Action, step.Caller, want, comp.Outcome, comp.Code, comp.Message))
	case want == ir.OutcomeRejected && step.Expect.Code != "" && comp.Code != step.Expect.Code:
		result.AddError(fmt.Sprintf("%s by %s: expected code %s, got %s (%s)",
			step.Action, step.Caller, step.Expect.Code, comp.Code, comp.Message))
	}

	h.logger.Debug("step completed",
		"action", step.Action,
		"caller", step.Caller,
		"outcome", comp.Outcome,
		"code", comp.Code,
		"seq", res.Invocation.Seq,
	)
	return nil
}

func (h *Harness) moveClock(step Step) error {
	if step.At != "" {
		at, err := ParseOffset(step.At)
		if err != nil {
			return fmt.Errorf("at: %w", err)
		}
		if err := h.clock.Set(ledger.Timestamp(at)); err != nil {
			return fmt.Errorf("at %s: %w", step.At, err)
		}
	}
	if step.Advance != "" {
		d, err := ParseOffset(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		h.clock.Advance(d)
	}
	return nil
}

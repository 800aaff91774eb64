package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/store"
)

// Divergence is one place where re-execution disagreed with the log.
type Divergence struct {
	Seq          int64  `json:"seq"`
	InvocationID string `json:"invocation_id,omitempty"`
	Action       string `json:"action,omitempty"`

	// Field names what differed: id, completion, outcome, code or state.
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Actions     int          `json:"actions"`
	Rejected    int          `json:"rejected"`
	StateHash   string       `json:"state_hash"`
	StoredHash  string       `json:"stored_hash"`
	Divergences []Divergence `json:"divergences,omitempty"`
}

// OK reports whether the log replayed exactly.
func (r ReplayReport) OK() bool {
	return len(r.Divergences) == 0
}

// Err returns a REPLAY_DIVERGED error describing the first divergence, or
// nil.
func (r ReplayReport) Err() error {
	if r.OK() {
		return nil
	}
	d := r.Divergences[0]
	return &RuntimeError{
		Code:    ErrCodeReplayDiverged,
		Message: fmt.Sprintf("%d divergence(s); first at seq %d: %s stored %q, replayed %q", len(r.Divergences), d.Seq, d.Field, d.Stored, d.Replayed),
		Action:  d.Action,
		Details: map[string]string{
			"seq":   fmt.Sprintf("%d", d.Seq),
			"field": d.Field,
		},
	}
}

// Replay re-executes the stored action log in seq order on empty tables and
// checks that every ID, outcome and code, and finally the table contents,
// match what the store holds. Nothing is written.
func Replay(ctx context.Context, s *store.Store, contract *ledger.Contract, contractAccount ledger.Name) (ReplayReport, error) {
	var rep ReplayReport

	invs, err := s.ReadAllInvocations(ctx)
	if err != nil {
		return rep, fmt.Errorf("replay: %w", err)
	}

	st := ledger.NewState()
	for _, inv := range invs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Actions++
		diverge := func(field, stored, replayed string) {
			rep.Divergences = append(rep.Divergences, Divergence{
				Seq:          inv.Seq,
				InvocationID: inv.ID,
				Action:       inv.Action,
				Field:        field,
				Stored:       stored,
				Replayed:     replayed,
			})
		}

		id, err := ir.InvocationID(inv.FlowToken, inv.Action, inv.Args, inv.Seq, inv.Time, inv.Caller)
		if err != nil {
			return rep, fmt.Errorf("replay seq %d: %w", inv.Seq, err)
		}
		if id != inv.ID {
			diverge("id", inv.ID, id)
		}

		comp, err := s.ReadCompletionFor(ctx, inv.ID)
		if errors.Is(err, sql.ErrNoRows) {
			diverge("completion", "", "missing")
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("replay seq %d: %w", inv.Seq, err)
		}
		if !comp.OK() {
			rep.Rejected++
		}

		outcome, code, message, err := replayOne(st, contract, contractAccount, inv)
		if err != nil {
			return rep, fmt.Errorf("replay seq %d: %w", inv.Seq, err)
		}
		if outcome != comp.Outcome {
			diverge("outcome", string(comp.Outcome), string(outcome))
		}
		if code != comp.Code {
			diverge("code", comp.Code, code)
		}
		compID, err := ir.CompletionID(inv.ID, outcome, code, message, comp.Seq)
		if err != nil {
			return rep, fmt.Errorf("replay seq %d: %w", inv.Seq, err)
		}
		if compID != comp.ID {
			diverge("completion", comp.ID, compID)
		}
	}

	if rep.StateHash, err = st.Hash(); err != nil {
		return rep, fmt.Errorf("replay: %w", err)
	}
	stored, err := s.LoadTables(ctx)
	if err != nil {
		return rep, fmt.Errorf("replay: %w", err)
	}
	if rep.StoredHash, err = stored.Hash(); err != nil {
		return rep, fmt.Errorf("replay: %w", err)
	}
	if rep.StateHash != rep.StoredHash {
		rep.Divergences = append(rep.Divergences, Divergence{
			Seq:      int64(len(invs)),
			Field:    "state",
			Stored:   rep.StoredHash,
			Replayed: rep.StateHash,
		})
	}
	return rep, nil
}

// replayOne runs a logged invocation against st and commits it if the
// contract accepts it. An invocation that no longer passes the ABI checks
// replays as rejected with the runtime error code.
func replayOne(st *ledger.State, contract *ledger.Contract, account ledger.Name, inv ir.Invocation) (ir.Outcome, string, string, error) {
	sig, ok := ir.LookupAction(inv.Action)
	if !ok {
		re := unknownActionError(inv.Action)
		return ir.OutcomeRejected, string(re.Code), re.Message, nil
	}
	if problems := sig.Check(inv.Args); len(problems) > 0 {
		return ir.OutcomeRejected, string(ErrCodeInvalidArgs), problems[0].Error(), nil
	}
	caller, err := ledger.ParseName(inv.Caller)
	if err != nil {
		return ir.OutcomeRejected, string(ErrCodeInvalidArgs), err.Error(), nil
	}

	tx, err := st.Begin()
	if err != nil {
		return "", "", "", err
	}
	env := ledger.Env{Now: ledger.Timestamp(inv.Time), Caller: caller, Contract: account}
	if err := dispatch(contract, tx, env, sig.Name, inv.Args); err != nil {
		tx.Rollback()
		var le *ledger.Error
		if !errors.As(err, &le) {
			return "", "", "", err
		}
		return ir.OutcomeRejected, string(le.Code), le.Message, nil
	}
	if _, err := tx.Commit(); err != nil {
		return "", "", "", err
	}
	return ir.OutcomeOK, "", "", nil
}

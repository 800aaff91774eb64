package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
)

// WriteAction records one action atomically: its invocation, its completion
// and every ledger row it changed. A rejected action carries an empty
// change set. Either everything is written or nothing is.
func (s *Store) WriteAction(ctx context.Context, inv ir.Invocation, comp ir.Completion, changes ledger.ChangeSet) error {
	if comp.InvocationID != inv.ID {
		return fmt.Errorf("write action: completion %s does not complete invocation %s", comp.ID, inv.ID)
	}
	if !comp.OK() && !changes.Empty() {
		return fmt.Errorf("write action: rejected action %s carries table changes", inv.ID)
	}

	argsJSON, err := marshalArgs(inv.Args)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write action: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invocations (id, flow_token, action, args, seq, time, caller, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.FlowToken, inv.Action, argsJSON, inv.Seq, inv.Time, inv.Caller, inv.IRVersion); err != nil {
		return fmt.Errorf("write action: insert invocation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completions (id, invocation_id, outcome, code, message, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, comp.ID, comp.InvocationID, string(comp.Outcome), comp.Code, comp.Message, comp.Seq); err != nil {
		return fmt.Errorf("write action: insert completion: %w", err)
	}

	if err := writeChanges(ctx, tx, changes, comp.Seq); err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write action: commit: %w", err)
	}
	return nil
}

func writeChanges(ctx context.Context, tx *sql.Tx, cs ledger.ChangeSet, seq int64) error {
	for _, r := range cs.Issuers {
		is := r.Value
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO issuers
			(identity, state, referral, pending_referral, last_issue_open, last_issue_at, supply, next_issue, payer, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(identity) DO UPDATE SET
				state = excluded.state,
				referral = excluded.referral,
				pending_referral = excluded.pending_referral,
				last_issue_open = excluded.last_issue_open,
				last_issue_at = excluded.last_issue_at,
				supply = excluded.supply,
				next_issue = excluded.next_issue,
				seq = excluded.seq
		`, string(is.Identity), is.State.String(), string(is.Referral), string(is.PendingReferral),
			boolInt(is.LastIssue.Open), int64(is.LastIssue.At), is.Supply.String(), is.NextIssue.String(),
			string(is.Payer), seq); err != nil {
			return fmt.Errorf("upsert issuer %s: %w", is.Identity, err)
		}
	}

	for _, r := range cs.Edges {
		e := r.Value
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO connections (source, peer, expiry_finite, expiry_at, revocable, payer, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source, peer) DO UPDATE SET
				expiry_finite = excluded.expiry_finite,
				expiry_at = excluded.expiry_at,
				revocable = excluded.revocable,
				seq = excluded.seq
		`, r.Scope, string(e.Peer), boolInt(e.Expiry.Finite), int64(e.Expiry.At), boolInt(e.Revocable),
			string(e.Payer), seq); err != nil {
			return fmt.Errorf("upsert connection %s -> %s: %w", r.Scope, e.Peer, err)
		}
	}

	for _, r := range cs.Balances {
		b := r.Value
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (owner, issuer, balance, payer, seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(owner, issuer) DO UPDATE SET
				balance = excluded.balance,
				seq = excluded.seq
		`, r.Scope, string(b.Issuer), b.Amount.String(), string(b.Payer), seq); err != nil {
			return fmt.Errorf("upsert account %s/%s: %w", r.Scope, b.Issuer, err)
		}
	}
	return nil
}

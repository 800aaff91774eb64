package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ubi/internal/asset"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/state"
)

const invocationColumns = `id, flow_token, action, args, seq, time, caller, ir_version`

const completionColumns = `id, invocation_id, outcome, code, message, seq`

// ReadInvocation returns one invocation by ID, or sql.ErrNoRows.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	return scanInvocation(row)
}

// ReadAllInvocations returns the whole log in seq order.
func (s *Store) ReadAllInvocations(ctx context.Context) ([]ir.Invocation, error) {
	return s.queryInvocations(ctx, `SELECT `+invocationColumns+` FROM invocations ORDER BY seq ASC`)
}

// ReadCompletionFor returns the completion of an invocation, or sql.ErrNoRows.
func (s *Store) ReadCompletionFor(ctx context.Context, invocationID string) (ir.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionColumns+` FROM completions WHERE invocation_id = ?`, invocationID)
	return scanCompletion(row)
}

// ReadFlow returns a flow's invocations and completions in seq order.
// Both slices are empty, not nil, for an unknown flow.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.Invocation, []ir.Completion, error) {
	invs, err := s.queryInvocations(ctx, `
		SELECT `+invocationColumns+` FROM invocations
		WHERE flow_token = ?
		ORDER BY seq ASC
	`, flowToken)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.invocation_id, c.outcome, c.code, c.message, c.seq
		FROM completions c
		JOIN invocations i ON c.invocation_id = i.id
		WHERE i.flow_token = ?
		ORDER BY c.seq ASC
	`, flowToken)
	if err != nil {
		return nil, nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	comps := []ir.Completion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, nil, err
		}
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate completions: %w", err)
	}
	return invs, comps, nil
}

// ListFlowTokens returns every flow token in order of first appearance.
func (s *Store) ListFlowTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_token FROM invocations
		GROUP BY flow_token
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list flow tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan flow token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM completions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// LoadTables reads every ledger row back, in the same (scope, key) order
// the in-memory tables iterate in.
func (s *Store) LoadTables(ctx context.Context) (ledger.ChangeSet, error) {
	var cs ledger.ChangeSet

	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, state, referral, pending_referral, last_issue_open, last_issue_at, supply, next_issue, payer
		FROM issuers ORDER BY identity COLLATE BINARY
	`)
	if err != nil {
		return cs, fmt.Errorf("load issuers: %w", err)
	}
	for rows.Next() {
		var r issuerRow
		if err := rows.Scan(&r.identity, &r.state, &r.referral, &r.pending, &r.gateOpen, &r.gateAt, &r.supply, &r.next, &r.payer); err != nil {
			rows.Close()
			return cs, fmt.Errorf("scan issuer: %w", err)
		}
		is, err := r.decode()
		if err != nil {
			rows.Close()
			return cs, err
		}
		cs.Issuers = append(cs.Issuers, state.Row[ledger.Issuer]{Scope: r.identity, Key: r.identity, Value: is})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cs, fmt.Errorf("load issuers: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT source, peer, expiry_finite, expiry_at, revocable, payer
		FROM connections ORDER BY source COLLATE BINARY, peer COLLATE BINARY
	`)
	if err != nil {
		return cs, fmt.Errorf("load connections: %w", err)
	}
	for rows.Next() {
		var (
			source, peer, payer string
			finite, revocable   bool
			at                  int64
		)
		if err := rows.Scan(&source, &peer, &finite, &at, &revocable, &payer); err != nil {
			rows.Close()
			return cs, fmt.Errorf("scan connection: %w", err)
		}
		cs.Edges = append(cs.Edges, state.Row[ledger.Edge]{
			Scope: source, Key: peer,
			Value: decodeEdge(peer, finite, at, revocable, payer),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return cs, fmt.Errorf("load connections: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT owner, issuer, balance, payer
		FROM accounts ORDER BY owner COLLATE BINARY, issuer COLLATE BINARY
	`)
	if err != nil {
		return cs, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner, issuer, balance, payer string
		if err := rows.Scan(&owner, &issuer, &balance, &payer); err != nil {
			return cs, fmt.Errorf("scan account: %w", err)
		}
		amount, err := parseQuantity("balance", balance)
		if err != nil {
			return cs, fmt.Errorf("account %s/%s: %w", owner, issuer, err)
		}
		cs.Balances = append(cs.Balances, state.Row[ledger.Balance]{
			Scope: owner, Key: issuer,
			Value: ledger.Balance{Issuer: ledger.Name(issuer), Amount: amount, Payer: ledger.Name(payer)},
		})
	}
	if err := rows.Err(); err != nil {
		return cs, fmt.Errorf("load accounts: %w", err)
	}
	return cs, nil
}

// Holding is one owner's balance of a currency.
type Holding struct {
	Owner  ledger.Name
	Amount asset.Quantity
}

// ReadHolders lists everyone holding issuer's currency, in owner order.
func (s *Store) ReadHolders(ctx context.Context, issuer string) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, balance FROM accounts
		WHERE issuer = ?
		ORDER BY owner COLLATE BINARY
	`, issuer)
	if err != nil {
		return nil, fmt.Errorf("read holders: %w", err)
	}
	defer rows.Close()

	var out []Holding
	for rows.Next() {
		var owner, balance string
		if err := rows.Scan(&owner, &balance); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		q, err := parseQuantity("balance", balance)
		if err != nil {
			return nil, err
		}
		out = append(out, Holding{Owner: ledger.Name(owner), Amount: q})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryInvocations(ctx context.Context, query string, args ...any) ([]ir.Invocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invs := []ir.Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invs, nil
}

func scanInvocation(row scanner) (ir.Invocation, error) {
	var inv ir.Invocation
	var argsJSON string
	if err := row.Scan(&inv.ID, &inv.FlowToken, &inv.Action, &argsJSON, &inv.Seq, &inv.Time, &inv.Caller, &inv.IRVersion); err != nil {
		if err == sql.ErrNoRows {
			return ir.Invocation{}, err
		}
		return ir.Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return ir.Invocation{}, fmt.Errorf("invocation %s: %w", inv.ID, err)
	}
	inv.Args = args
	return inv, nil
}

func scanCompletion(row scanner) (ir.Completion, error) {
	var c ir.Completion
	var outcome string
	if err := row.Scan(&c.ID, &c.InvocationID, &outcome, &c.Code, &c.Message, &c.Seq); err != nil {
		if err == sql.ErrNoRows {
			return ir.Completion{}, err
		}
		return ir.Completion{}, fmt.Errorf("scan completion: %w", err)
	}
	c.Outcome = ir.Outcome(outcome)
	return c, nil
}

// Query runs a read query against the tables. Used by scenario assertions
// and diagnostics; callers must close the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ubi/internal/asset"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/state"
)

// createTestStore creates a store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestInvocation(id, flowToken, action string, seq int64) ir.Invocation {
	return ir.Invocation{
		ID:        id,
		FlowToken: flowToken,
		Action:    action,
		Args:      ir.IRObject{"issuer": ir.IRString("alice")},
		Seq:       seq,
		Time:      seq * int64(ledger.Second),
		Caller:    "alice",
		IRVersion: ir.Version,
	}
}

func createTestCompletion(id, invocationID string, seq int64) ir.Completion {
	return ir.Completion{ID: id, InvocationID: invocationID, Outcome: ir.OutcomeOK, Seq: seq}
}

func rejectedCompletion(id, invocationID, code string, seq int64) ir.Completion {
	return ir.Completion{
		ID:           id,
		InvocationID: invocationID,
		Outcome:      ir.OutcomeRejected,
		Code:         code,
		Message:      "rejected for testing",
		Seq:          seq,
	}
}

// sampleChanges is one row per table, covering the open and closed forms
// of the gate and expiry encodings.
func sampleChanges() ledger.ChangeSet {
	return ledger.ChangeSet{
		Issuers: []state.Row[ledger.Issuer]{
			{Scope: "alice", Key: "alice", Value: ledger.Issuer{
				Identity:  "alice",
				State:     ledger.Accepted,
				Referral:  "genesis",
				LastIssue: ledger.IssuedAt(42),
				Supply:    asset.MustParse("0.0099 UBI"),
				NextIssue: asset.MustParse("0.0098 UBI"),
				Payer:     "alice",
			}},
			{Scope: "bob", Key: "bob", Value: ledger.Issuer{
				Identity:        "bob",
				State:           ledger.Pending,
				PendingReferral: "alice",
				LastIssue:       ledger.Blocked(),
				Supply:          asset.MustParse("0.0000 UBI"),
				NextIssue:       asset.MustParse("0.0100 UBI"),
				Payer:           "bob",
			}},
		},
		Edges: []state.Row[ledger.Edge]{
			{Scope: "alice", Key: "bob", Value: ledger.Edge{Peer: "bob", Expiry: ledger.ExpiresAt(500), Revocable: true, Payer: "alice"}},
			{Scope: "alice", Key: "genesis", Value: ledger.Edge{Peer: "genesis", Expiry: ledger.Never(), Payer: "alice"}},
		},
		Balances: []state.Row[ledger.Balance]{
			{Scope: "alice", Key: "alice", Value: ledger.Balance{Issuer: "alice", Amount: asset.MustParse("0.0099 UBI"), Payer: "alice"}},
			{Scope: "genesis", Key: "alice", Value: ledger.Balance{Issuer: "alice", Amount: asset.MustParse("0.0001 UBI"), Payer: "alice"}},
		},
	}
}

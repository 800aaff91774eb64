package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ubi/internal/asset"
)

const contractAccount Name = "ubi"

type fixture struct {
	t   *testing.T
	st  *State
	c   *Contract
	now Timestamp
}

func newFixture(t *testing.T, p Params) *fixture {
	t.Helper()
	c, err := New(p, nil)
	require.NoError(t, err)
	return &fixture{t: t, st: NewState(), c: c}
}

// do runs fn in its own action scope as caller, committing on success.
func (f *fixture) do(caller Name, fn func(tx *Tx, env Env) error) error {
	f.t.Helper()
	tx, err := f.st.Begin()
	require.NoError(f.t, err)
	env := Env{Now: f.now, Caller: caller, Contract: contractAccount}
	if err := fn(tx, env); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.Commit()
	require.NoError(f.t, err)
	return nil
}

func (f *fixture) launch(genesis Name) {
	f.t.Helper()
	require.NoError(f.t, f.do(contractAccount, func(tx *Tx, env Env) error {
		return f.c.Launch(tx, env, genesis)
	}))
}

// join applies identity to referral and has referral accept it.
func (f *fixture) join(referral, identity Name) {
	f.t.Helper()
	require.NoError(f.t, f.do(identity, func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, identity, referral)
	}))
	require.NoError(f.t, f.do(referral, func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, referral, identity)
	}))
}

func (f *fixture) issue(identity Name) error {
	return f.do(identity, func(tx *Tx, env Env) error {
		return f.c.Issue(tx, env, identity)
	})
}

func (f *fixture) trust(from, to Name) error {
	return f.do(from, func(tx *Tx, env Env) error {
		return f.c.Trust(tx, env, from, to)
	})
}

func (f *fixture) untrust(from, to Name) error {
	return f.do(from, func(tx *Tx, env Env) error {
		return f.c.Untrust(tx, env, from, to)
	})
}

func (f *fixture) balance(owner, issuer Name) string {
	return BalanceOf(f.st, owner, issuer, asset.UBI).String()
}

func (f *fixture) hash() string {
	f.t.Helper()
	h, err := f.st.Hash()
	require.NoError(f.t, err)
	return h
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, CodeOf(err), "error: %v", err)
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.RoyaltyPercent = 101
	_, err := New(p, nil)
	require.Error(t, err)
}

func TestLaunch(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")

	is, ok := f.st.Issuer("genesis")
	require.True(t, ok)
	assert.True(t, is.IsAccepted())
	assert.Equal(t, Name("genesis"), is.Referral)
	assert.Equal(t, "0.0000 UBI", is.Supply.String())
	assert.Equal(t, "100.0000 UBI", is.NextIssue.String())
	assert.Equal(t, IssuedAt(0), is.LastIssue)

	e, ok := f.st.Edge("genesis", "genesis")
	require.True(t, ok)
	assert.Equal(t, Never(), e.Expiry)
	assert.False(t, e.Revocable)
	assert.Equal(t, 1, LiveEdgeCount(f.st, "genesis", f.now))
}

func TestLaunch_Rejections(t *testing.T) {
	f := newFixture(t, DefaultParams())

	err := f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Launch(tx, env, "genesis")
	})
	requireCode(t, err, CodeMissingAuth)
	assert.True(t, errors.Is(err, ErrMissingAuth))

	f.launch("genesis")
	err = f.do(contractAccount, func(tx *Tx, env Env) error {
		return f.c.Launch(tx, env, "genesis")
	})
	requireCode(t, err, CodeAlreadyLaunched)
}

func TestLaunch_UnknownAccount(t *testing.T) {
	c, err := New(DefaultParams(), NewAccountSet("ubi"))
	require.NoError(t, err)
	f := &fixture{t: t, st: NewState(), c: c}

	err = f.do(contractAccount, func(tx *Tx, env Env) error {
		return f.c.Launch(tx, env, "genesis")
	})
	requireCode(t, err, CodeAccountNotFound)
}

func TestApplyAccept(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")

	require.NoError(t, f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "bob", "genesis")
	}))

	is, ok := f.st.Issuer("bob")
	require.True(t, ok)
	assert.False(t, is.IsAccepted())
	assert.Equal(t, Blocked(), is.LastIssue)
	assert.Equal(t, "100.0000 UBI", is.NextIssue.String())
	_, ok = Referral(f.st, "bob")
	assert.False(t, ok)
	pending, ok := PendingReferral(f.st, "bob")
	require.True(t, ok)
	assert.Equal(t, Name("genesis"), pending)

	// A pending identity cannot mint, no matter how much time passes.
	f.now = Timestamp(400 * Day)
	requireCode(t, f.issue("bob"), CodeNotAccepted)

	require.NoError(t, f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, "genesis", "bob")
	}))

	is, _ = f.st.Issuer("bob")
	assert.True(t, is.IsAccepted())
	assert.Equal(t, Name("genesis"), is.Referral)
	assert.Equal(t, IssuedAt(0), is.LastIssue)
	assert.Equal(t, "100.0000 UBI", is.NextIssue.String())

	for _, pair := range [][2]Name{{"bob", "bob"}, {"genesis", "bob"}, {"bob", "genesis"}} {
		e, ok := f.st.Edge(pair[0], pair[1])
		require.True(t, ok, "%s -> %s", pair[0], pair[1])
		assert.False(t, e.Revocable)
		assert.True(t, e.Live(f.now))
		assert.Equal(t, Name("genesis"), e.Payer)
	}
}

func TestApply_Retarget(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "carol")

	apply := func(referral Name) error {
		return f.do("bob", func(tx *Tx, env Env) error {
			return f.c.Apply(tx, env, "bob", referral)
		})
	}
	require.NoError(t, apply("genesis"))
	require.NoError(t, apply("carol"))
	require.NoError(t, apply("genesis"))
	require.NoError(t, apply("carol"))

	err := f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, "genesis", "bob")
	})
	requireCode(t, err, CodeWrongReferral)
	assert.True(t, errors.Is(err, ErrWrongReferral))

	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, "carol", "bob")
	}))
	referral, _ := Referral(f.st, "bob")
	assert.Equal(t, Name("carol"), referral)

	requireCode(t, apply("genesis"), CodeAlreadyAccepted)
	err = f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, "carol", "bob")
	})
	requireCode(t, err, CodeAlreadyAccepted)
}

func TestApply_Rejections(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")

	err := f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "bob", "nobody")
	})
	requireCode(t, err, CodeNotApplied)

	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "carol", "genesis")
	}))
	err = f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "bob", "carol")
	})
	requireCode(t, err, CodeNotAccepted)

	err = f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "bob", "genesis")
	})
	requireCode(t, err, CodeMissingAuth)

	err = f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Accept(tx, env, "genesis", "dave")
	})
	requireCode(t, err, CodeNotApplied)
}

func TestTrust_DecayAndRevival(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "bob")
	f.join("genesis", "carol")

	f.now = Timestamp(5 * Day)
	require.NoError(t, f.trust("bob", "carol"))
	e, ok := f.st.Edge("bob", "carol")
	require.True(t, ok)
	assert.True(t, e.Revocable)
	assert.Equal(t, Never(), e.Expiry)
	assert.Equal(t, Name("bob"), e.Payer)

	// Trusting again is idempotent.
	require.NoError(t, f.trust("bob", "carol"))
	again, _ := f.st.Edge("bob", "carol")
	assert.Equal(t, e, again)

	require.NoError(t, f.untrust("bob", "carol"))
	e, _ = f.st.Edge("bob", "carol")
	assert.Equal(t, ExpiresAt(f.now.Add(30*Day)), e.Expiry)

	// Untrusting again restarts the grace period from now.
	f.now = f.now.Add(10 * Day)
	require.NoError(t, f.untrust("bob", "carol"))
	e, _ = f.st.Edge("bob", "carol")
	assert.Equal(t, ExpiresAt(f.now.Add(30*Day)), e.Expiry)
	deadline := e.Expiry.At

	assert.True(t, IsLive(f.st, "bob", "carol", deadline-1))
	assert.False(t, IsLive(f.st, "bob", "carol", deadline))

	f.now = deadline
	requireCode(t, f.untrust("bob", "carol"), CodeEdgeExpired)

	// Still stored after expiry.
	assert.Len(t, Edges(f.st, "bob"), 3)

	require.NoError(t, f.trust("bob", "carol"))
	e, _ = f.st.Edge("bob", "carol")
	assert.Equal(t, Never(), e.Expiry)
	assert.True(t, e.Revocable)
}

func TestTrust_IrrevocableEdges(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "bob")

	require.NoError(t, f.trust("bob", "genesis"))
	e, _ := f.st.Edge("bob", "genesis")
	assert.False(t, e.Revocable)

	err := f.untrust("bob", "genesis")
	requireCode(t, err, CodeEdgeIrrevocable)
	assert.True(t, errors.Is(err, ErrEdgeIrrevocable))
}

func TestTrust_Rejections(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "bob")
	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "carol", "genesis")
	}))

	requireCode(t, f.trust("bob", "carol"), CodeNotAccepted)
	requireCode(t, f.trust("carol", "bob"), CodeNotAccepted)
	requireCode(t, f.trust("bob", "dave"), CodeNotApplied)
	requireCode(t, f.untrust("bob", "carol"), CodeNotAccepted)

	f.join("genesis", "dave")
	requireCode(t, f.untrust("bob", "dave"), CodeEdgeNotFound)

	err := f.do("genesis", func(tx *Tx, env Env) error {
		return f.c.Trust(tx, env, "bob", "dave")
	})
	requireCode(t, err, CodeMissingAuth)
}

func TestTrust_LiveEdgeCap(t *testing.T) {
	p := DefaultParams()
	p.EdgeCap = 3
	f := newFixture(t, p)
	f.launch("genesis")
	f.join("genesis", "bob")
	f.join("genesis", "carol")
	f.join("carol", "dave")

	// bob: bob->bob, bob->genesis.
	require.Equal(t, 2, LiveEdgeCount(f.st, "bob", f.now))
	require.NoError(t, f.trust("bob", "carol"))

	err := f.trust("bob", "dave")
	requireCode(t, err, CodeEdgeCapExceeded)
	assert.True(t, errors.Is(err, ErrEdgeCapExceeded))

	// Refreshing a live edge is not a new edge.
	require.NoError(t, f.trust("bob", "carol"))

	require.NoError(t, f.untrust("bob", "carol"))
	requireCode(t, f.trust("bob", "dave"), CodeEdgeCapExceeded)

	f.now = f.now.Add(30 * Day)
	assert.Equal(t, 2, LiveEdgeCount(f.st, "bob", f.now))
	require.NoError(t, f.trust("bob", "dave"))
	assert.Equal(t, 3, LiveEdgeCount(f.st, "bob", f.now))
}

func TestIssue_DecayAndRoyalty(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "bob")

	requireCode(t, f.issue("bob"), CodeIssueTooEarly)

	f.now = Timestamp(Day) + 1
	require.NoError(t, f.issue("bob"))

	is, _ := f.st.Issuer("bob")
	assert.Equal(t, "100.0000 UBI", is.Supply.String())
	assert.Equal(t, "99.9900 UBI", is.NextIssue.String())
	assert.Equal(t, IssuedAt(f.now), is.LastIssue)
	assert.Equal(t, "99.0000 UBI", f.balance("bob", "bob"))
	assert.Equal(t, "1.0000 UBI", f.balance("genesis", "bob"))

	f.now = f.now.Add(Day)
	err := f.issue("bob")
	requireCode(t, err, CodeIssueTooEarly)
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.False(t, lerr.Permanent())
	assert.Equal(t, KindTemporal, lerr.Kind())

	f.now++
	require.NoError(t, f.issue("bob"))
	assert.Equal(t, "199.9900 UBI", Supply(f.st, "bob", asset.UBI).String())
	// floor(99.9900 * 1%) = 0.9999
	assert.Equal(t, "197.9901 UBI", f.balance("bob", "bob"))
	assert.Equal(t, "1.9999 UBI", f.balance("genesis", "bob"))

	last, ok := LastIssueTime(f.st, "bob")
	require.True(t, ok)
	assert.Equal(t, f.now, last)
}

func TestIssue_GenesisKeepsRoyalty(t *testing.T) {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.now = Timestamp(Day) + 1
	require.NoError(t, f.issue("genesis"))
	assert.Equal(t, "100.0000 UBI", f.balance("genesis", "genesis"))
}

func TestIssue_Exhaustion(t *testing.T) {
	p := DefaultParams()
	p.Initial = asset.Units(250, asset.UBI)
	p.Delta = asset.Units(100, asset.UBI)
	p.RoyaltyPercent = 0
	require.Equal(t, int64(3), p.Emissions())

	f := newFixture(t, p)
	f.launch("genesis")
	f.join("genesis", "bob")

	for i := 0; i < 3; i++ {
		f.now = f.now.Add(Day + 1)
		require.NoError(t, f.issue("bob"), "emission %d", i)
	}
	is, _ := f.st.Issuer("bob")
	assert.Equal(t, "0.0450 UBI", is.Supply.String())
	assert.Equal(t, "0.0000 UBI", is.NextIssue.String())

	// A zero royalty still opens the referral's balance row.
	b, ok := f.st.Balance("genesis", "bob")
	require.True(t, ok)
	assert.Equal(t, int64(0), b.Amount.Amount)

	for i := 0; i < 3; i++ {
		f.now = f.now.Add(10 * Day)
		err := f.issue("bob")
		requireCode(t, err, CodeQuotaExhausted)
		var lerr *Error
		require.True(t, errors.As(err, &lerr))
		assert.True(t, lerr.Permanent())
	}
}

// funded returns a fixture where bob and carol have each minted once and
// carol trusts bob.
func funded(t *testing.T) *fixture {
	f := newFixture(t, DefaultParams())
	f.launch("genesis")
	f.join("genesis", "bob")
	f.join("genesis", "carol")
	f.now = Timestamp(Day) + 1
	require.NoError(t, f.issue("bob"))
	require.NoError(t, f.issue("carol"))
	require.NoError(t, f.trust("carol", "bob"))
	return f
}

func TestTransfer(t *testing.T) {
	f := funded(t)

	var recipients []Name
	require.NoError(t, f.do("bob", func(tx *Tx, env Env) error {
		err := f.c.Transfer(tx, env, "bob", "carol", "bob", asset.MustParse("10.0000 UBI"), "rent")
		recipients = tx.Recipients()
		return err
	}))
	assert.Equal(t, []Name{"bob", "carol"}, recipients)
	assert.Equal(t, "89.0000 UBI", f.balance("bob", "bob"))
	assert.Equal(t, "10.0000 UBI", f.balance("carol", "bob"))

	// Carol can pass bob's currency on without bob's involvement.
	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Transfer(tx, env, "carol", "genesis", "bob", asset.MustParse("2.5000 UBI"), "")
	}))
	assert.Equal(t, "7.5000 UBI", f.balance("carol", "bob"))
	assert.Equal(t, "3.5000 UBI", f.balance("genesis", "bob"))

	b, _ := f.st.Balance("genesis", "bob")
	assert.Equal(t, Name("bob"), b.Payer, "existing row keeps its payer")

	assert.Equal(t, []Balance{
		{Issuer: "bob", Amount: asset.MustParse("7.5000 UBI"), Payer: "bob"},
		{Issuer: "carol", Amount: asset.MustParse("99.0000 UBI"), Payer: "carol"},
	}, Balances(f.st, "carol"))
}

func TestTransfer_Rejections(t *testing.T) {
	f := funded(t)
	require.NoError(t, f.do("dave", func(tx *Tx, env Env) error {
		return f.c.Apply(tx, env, "dave", "genesis")
	}))
	ten := asset.MustParse("10.0000 UBI")
	long := make([]byte, 257)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name   string
		caller Name
		from   Name
		to     Name
		issuer Name
		qty    asset.Quantity
		memo   string
		code   Code
	}{
		{"missing auth", "carol", "bob", "carol", "bob", ten, "", CodeMissingAuth},
		{"memo too long", "bob", "bob", "carol", "bob", ten, string(long), CodeMemoTooLong},
		{"self", "bob", "bob", "bob", "bob", ten, "", CodeSelfTransfer},
		{"zero", "bob", "bob", "carol", "bob", asset.Units(0, asset.UBI), "", CodeNonPositive},
		{"negative", "bob", "bob", "carol", "bob", asset.Units(-5, asset.UBI), "", CodeNonPositive},
		{"invalid", "bob", "bob", "carol", "bob", asset.Units(asset.MaxAmount+1, asset.UBI), "", CodeInvalidQuantity},
		{"symbol", "bob", "bob", "carol", "bob", asset.MustParse("10.0000 EOS"), "", CodeSymbolMismatch},
		{"precision", "bob", "bob", "carol", "bob", asset.MustParse("10.00 UBI"), "", CodeSymbolMismatch},
		{"pending recipient", "bob", "bob", "dave", "bob", ten, "", CodeNotAccepted},
		{"unknown recipient", "bob", "bob", "erin", "bob", ten, "", CodeNotApplied},
		{"no balance", "bob", "bob", "carol", "genesis", ten, "", CodeNoBalance},
		{"overdrawn", "bob", "bob", "carol", "bob", asset.MustParse("99.0001 UBI"), "", CodeOverdrawn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.hash()
			err := f.do(tt.caller, func(tx *Tx, env Env) error {
				return f.c.Transfer(tx, env, tt.from, tt.to, tt.issuer, tt.qty, tt.memo)
			})
			requireCode(t, err, tt.code)
			assert.Equal(t, before, f.hash())
		})
	}
}

func TestTransfer_MemoAtLimit(t *testing.T) {
	f := funded(t)
	memo := make([]byte, 256)
	for i := range memo {
		memo[i] = 'm'
	}
	require.NoError(t, f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Transfer(tx, env, "bob", "carol", "bob", asset.MustParse("1.0000 UBI"), string(memo))
	}))
}

func TestTrustTransfer(t *testing.T) {
	f := funded(t)
	one := asset.MustParse("1.0000 UBI")

	trustTransfer := func(from, to, issuer Name) error {
		return f.do(from, func(tx *Tx, env Env) error {
			return f.c.TrustTransfer(tx, env, from, to, issuer, one, "")
		})
	}

	// bob does not trust carol, but a plain transfer still goes through.
	requireCode(t, trustTransfer("carol", "bob", "carol"), CodeEdgeNotFound)
	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Transfer(tx, env, "carol", "bob", "carol", one, "")
	}))

	require.NoError(t, trustTransfer("bob", "carol", "bob"))
	assert.Equal(t, "1.0000 UBI", f.balance("carol", "bob"))

	require.NoError(t, f.untrust("carol", "bob"))
	require.NoError(t, trustTransfer("bob", "carol", "bob"), "grace period keeps the edge live")

	f.now = f.now.Add(30 * Day)
	requireCode(t, trustTransfer("bob", "carol", "bob"), CodeEdgeExpired)
	assert.Equal(t, "2.0000 UBI", f.balance("carol", "bob"))
}

func TestSwap(t *testing.T) {
	f := funded(t)
	five := asset.MustParse("5.0000 UBI")

	require.NoError(t, f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Swap(tx, env, "bob", "carol", "bob", "carol", five)
	}))
	assert.Equal(t, "94.0000 UBI", f.balance("bob", "bob"))
	assert.Equal(t, "5.0000 UBI", f.balance("carol", "bob"))
	assert.Equal(t, "94.0000 UBI", f.balance("carol", "carol"))
	assert.Equal(t, "5.0000 UBI", f.balance("bob", "carol"))

	// The reverse trust is never checked: bob does not trust carol.
	_, ok := f.st.Edge("bob", "carol")
	assert.False(t, ok)
}

func TestSwap_Atomic(t *testing.T) {
	f := funded(t)
	require.NoError(t, f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Transfer(tx, env, "carol", "genesis", "carol", asset.MustParse("10.0000 UBI"), "")
	}))
	before := f.hash()

	// First leg succeeds on its own, second leg overdraws carol.
	err := f.do("bob", func(tx *Tx, env Env) error {
		return f.c.Swap(tx, env, "bob", "carol", "bob", "carol", asset.MustParse("95.0000 UBI"))
	})
	requireCode(t, err, CodeOverdrawn)
	assert.Equal(t, before, f.hash())
	assert.Equal(t, "99.0000 UBI", f.balance("bob", "bob"))
	assert.Equal(t, "0.0000 UBI", f.balance("carol", "bob"))
	assert.Equal(t, "89.0000 UBI", f.balance("carol", "carol"))
}

func TestSwap_Rejections(t *testing.T) {
	f := funded(t)
	five := asset.MustParse("5.0000 UBI")

	// carol trusts bob, but bob does not trust carol.
	err := f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Swap(tx, env, "carol", "bob", "carol", "bob", five)
	})
	requireCode(t, err, CodeEdgeNotFound)

	err = f.do("carol", func(tx *Tx, env Env) error {
		return f.c.Swap(tx, env, "bob", "carol", "bob", "carol", five)
	})
	requireCode(t, err, CodeMissingAuth)
}

func TestTx_RollbackDropsRecipients(t *testing.T) {
	f := funded(t)
	tx, err := f.st.Begin()
	require.NoError(t, err)
	env := Env{Now: f.now, Caller: "bob", Contract: contractAccount}
	err = f.c.Transfer(tx, env, "bob", "carol", "bob", asset.MustParse("500.0000 UBI"), "")
	requireCode(t, err, CodeOverdrawn)
	tx.Rollback()
	assert.Empty(t, tx.Recipients())

	_, err = f.st.Begin()
	require.NoError(t, err, "rollback closes the scope")
}

package engine

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/store"
)

const contractAccount ledger.Name = "ubi"

// recorder is a Notifier that remembers who it was told about.
type recorder struct {
	mu   sync.Mutex
	seen []ledger.Name
}

func (r *recorder) Notify(n ledger.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func setupTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newContract(t *testing.T) *ledger.Contract {
	t.Helper()
	c, err := ledger.New(ledger.DefaultParams(), nil)
	require.NoError(t, err)
	return c
}

func setupEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s, _ := setupTestStore(t)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}, opts...)
	e, err := Open(context.Background(), s, newContract(t), contractAccount, NewSequenceGenerator("flow"), opts...)
	require.NoError(t, err)
	return e, s
}

func args(kv ...string) ir.IRObject {
	obj := ir.IRObject{}
	for i := 0; i+1 < len(kv); i += 2 {
		obj[kv[i]] = ir.IRString(kv[i+1])
	}
	return obj
}

func exec(t *testing.T, e *Engine, caller string, at ledger.Timestamp, action string, kv ...string) Result {
	t.Helper()
	res, err := e.Execute(context.Background(), Request{Action: action, Args: args(kv...), Caller: caller, Time: at})
	require.NoError(t, err)
	return res
}

func mustOK(t *testing.T, res Result) {
	t.Helper()
	require.True(t, res.Completion.OK(), "%s rejected: %s %s", res.Invocation.Action, res.Completion.Code, res.Completion.Message)
}

// bootstrap launches genesis and accepts alice under it.
func bootstrap(t *testing.T, e *Engine) {
	t.Helper()
	mustOK(t, exec(t, e, "ubi", 0, ir.ActionLaunch, "genesis", "genesis"))
	mustOK(t, exec(t, e, "alice", 0, ir.ActionApply, "issuer", "alice", "referral", "genesis"))
	mustOK(t, exec(t, e, "genesis", 0, ir.ActionAccept, "issuer", "genesis", "candidate", "alice"))
}

func balance(e *Engine, owner, issuer ledger.Name) string {
	var out string
	e.View(func(v ledger.View) {
		out = ledger.BalanceOf(v, owner, issuer, ledger.DefaultParams().Symbol).String()
	})
	return out
}

func TestEngine_ExecuteRecordsAction(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	res := exec(t, e, "ubi", 0, ir.ActionLaunch, "genesis", "genesis")
	mustOK(t, res)

	assert.Equal(t, "flow-0001", res.Invocation.FlowToken)
	assert.Equal(t, int64(1), res.Invocation.Seq)
	assert.Equal(t, int64(2), res.Completion.Seq)
	assert.Equal(t, res.Invocation.ID, res.Completion.InvocationID)
	assert.Equal(t, ir.MustInvocationID("flow-0001", "launch", args("genesis", "genesis"), 1, 0, "ubi"), res.Invocation.ID)

	stored, err := s.ReadInvocation(ctx, res.Invocation.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Invocation, stored)

	comp, err := s.ReadCompletionFor(ctx, res.Invocation.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Completion, comp)

	tables, err := s.LoadTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables.Issuers, 1)
	require.Len(t, tables.Edges, 1)

	hash, err := e.StateHash()
	require.NoError(t, err)
	storedHash, err := tables.Hash()
	require.NoError(t, err)
	assert.Equal(t, storedHash, hash)
}

func TestEngine_RejectionIsRecorded(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	res := exec(t, e, "alice", 0, ir.ActionLaunch, "genesis", "genesis")
	assert.False(t, res.Completion.OK())
	assert.Equal(t, string(ledger.CodeMissingAuth), res.Completion.Code)
	assert.Empty(t, res.Recipients)

	comp, err := s.ReadCompletionFor(ctx, res.Invocation.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeRejected, comp.Outcome)

	tables, err := s.LoadTables(ctx)
	require.NoError(t, err)
	assert.True(t, tables.Empty())
}

func TestEngine_RejectionLeavesEngineUsable(t *testing.T) {
	e, _ := setupEngine(t)
	bootstrap(t, e)
	before, err := e.StateHash()
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), Request{
		Action: ir.ActionIssue, Args: args("issuer", "alice"), Caller: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeRejected, res.Completion.Outcome)
	assert.Equal(t, string(ledger.CodeIssueTooEarly), res.Completion.Code)
	assert.Equal(t, res.Invocation.Seq+1, res.Completion.Seq)
	assert.Equal(t, res.Completion.Seq, e.Seq())

	after, err := e.StateHash()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	mustOK(t, exec(t, e, "alice", 0, ir.ActionTrust, "from", "alice", "to", "genesis"))
}

func TestEngine_ValueErrorsAreRejections(t *testing.T) {
	e, _ := setupEngine(t)
	bootstrap(t, e)

	res := exec(t, e, "alice", 0, ir.ActionTrust, "from", "alice", "to", "Not.A.Name")
	assert.Equal(t, string(ledger.CodeInvalidName), res.Completion.Code)

	res = exec(t, e, "alice", 0, ir.ActionTransfer,
		"from", "alice", "to", "genesis", "token_issuer", "alice", "quantity", "a lot")
	assert.Equal(t, string(ledger.CodeInvalidQuantity), res.Completion.Code)
}

func TestEngine_RuntimeErrorsAreNotRecorded(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, Request{Action: "mint", Caller: "ubi"})
	assert.True(t, IsUnknownAction(err))

	_, err = e.Execute(ctx, Request{Action: ir.ActionLaunch, Args: args("genesis", "genesis", "extra", "x"), Caller: "ubi"})
	assert.True(t, IsInvalidArgs(err))

	_, err = e.Execute(ctx, Request{Action: ir.ActionLaunch, Args: ir.IRObject{"genesis": ir.IRInt(7)}, Caller: "ubi"})
	assert.True(t, IsInvalidArgs(err))

	_, err = e.Execute(ctx, Request{Action: ir.ActionLaunch, Args: args("genesis", "genesis"), Caller: "UBI"})
	assert.True(t, IsInvalidArgs(err))

	invs, err := s.ReadAllInvocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, invs)
	assert.Zero(t, e.Seq())
}

func TestEngine_CancelledContext(t *testing.T) {
	e, _ := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, Request{Action: ir.ActionLaunch, Args: args("genesis", "genesis"), Caller: "ubi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_IssueAndTransfer(t *testing.T) {
	rec := &recorder{}
	e, _ := setupEngine(t, WithNotifier(rec))
	bootstrap(t, e)

	day := ledger.Timestamp(ledger.Day)
	assert.Equal(t, string(ledger.CodeIssueTooEarly), exec(t, e, "alice", day, ir.ActionIssue, "issuer", "alice").Completion.Code)

	mustOK(t, exec(t, e, "alice", day+1, ir.ActionIssue, "issuer", "alice"))
	assert.Equal(t, "99.0000 UBI", balance(e, "alice", "alice"))
	assert.Equal(t, "1.0000 UBI", balance(e, "genesis", "alice"))

	res := exec(t, e, "alice", day+2, ir.ActionTransfer,
		"from", "alice", "to", "genesis", "token_issuer", "alice", "quantity", "9.0000 UBI", "memo", "thanks")
	mustOK(t, res)
	assert.Equal(t, []ledger.Name{"alice", "genesis"}, res.Recipients)
	assert.Equal(t, []ledger.Name{"alice", "genesis"}, rec.seen)
	assert.Equal(t, "90.0000 UBI", balance(e, "alice", "alice"))
	assert.Equal(t, "10.0000 UBI", balance(e, "genesis", "alice"))
}

func TestEngine_FlowTokenPassthrough(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	res, err := e.Execute(ctx, Request{
		Action: ir.ActionLaunch, Args: args("genesis", "genesis"), Caller: "ubi", FlowToken: "given",
	})
	require.NoError(t, err)
	assert.Equal(t, "given", res.Invocation.FlowToken)

	invs, _, err := s.ReadFlow(ctx, "given")
	require.NoError(t, err)
	assert.Len(t, invs, 1)
}

func TestEngine_ReopenRestoresState(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	quiet := WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	e1, err := Open(ctx, s, newContract(t), contractAccount, NewSequenceGenerator("a"), quiet)
	require.NoError(t, err)
	bootstrap(t, e1)
	mustOK(t, exec(t, e1, "alice", ledger.Timestamp(ledger.Day)+1, ir.ActionIssue, "issuer", "alice"))
	hash1, err := e1.StateHash()
	require.NoError(t, err)

	e2, err := Open(ctx, s, newContract(t), contractAccount, NewSequenceGenerator("b"), quiet)
	require.NoError(t, err)
	assert.Equal(t, e1.Seq(), e2.Seq())
	hash2, err := e2.StateHash()
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)

	// The clock continues, so the next action does not collide with the log.
	res := exec(t, e2, "alice", ledger.Timestamp(ledger.Day)+2, ir.ActionTrust, "from", "alice", "to", "genesis")
	assert.Equal(t, e1.Seq()+1, res.Invocation.Seq)
}

func TestEngine_StoreFailureRollsBack(t *testing.T) {
	e, s := setupEngine(t)
	bootstrap(t, e)
	before, err := e.StateHash()
	require.NoError(t, err)

	seq := e.Seq()

	require.NoError(t, s.Close())
	_, err = e.Execute(context.Background(), Request{
		Action: ir.ActionTrust, Args: args("from", "alice", "to", "genesis"), Caller: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, seq, e.Seq(), "a failed write must not consume seqs")

	after, err := e.StateHash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, _ := setupEngine(t, WithRegisterer(reg))
	bootstrap(t, e)
	exec(t, e, "alice", 0, ir.ActionIssue, "issuer", "alice")

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.actions.WithLabelValues("launch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.actions.WithLabelValues("issue", "rejected")))
	assert.Equal(t, float64(e.Seq()), testutil.ToFloat64(e.metrics.seq))

	n, err := testutil.GatherAndCount(reg, "ubi_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestEngine_RunAndSubmit(t *testing.T) {
	e, _ := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	res, err := e.Submit(ctx, Request{Action: ir.ActionLaunch, Args: args("genesis", "genesis"), Caller: "ubi"})
	require.NoError(t, err)
	mustOK(t, res)

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = e.Submit(context.Background(), Request{Action: ir.ActionLaunch, Args: args("genesis", "other"), Caller: "ubi"})
	assert.True(t, IsStopped(err))
}

func TestEngine_RunCancelled(t *testing.T) {
	e, _ := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_ConcurrentSubmit(t *testing.T) {
	e, s := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	bootstrapRes, err := e.Submit(ctx, Request{Action: ir.ActionLaunch, Args: args("genesis", "genesis"), Caller: "ubi"})
	require.NoError(t, err)
	mustOK(t, bootstrapRes)

	names := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			res, err := e.Submit(ctx, Request{Action: ir.ActionApply, Args: args("issuer", n, "referral", "genesis"), Caller: n})
			assert.NoError(t, err)
			assert.True(t, res.Completion.OK())
		}(n)
	}
	wg.Wait()

	invs, err := s.ReadAllInvocations(context.Background())
	require.NoError(t, err)
	require.Len(t, invs, 6)
	for i := 1; i < len(invs); i++ {
		assert.Less(t, invs[i-1].Seq, invs[i].Seq)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
	"github.com/roach88/ubi/internal/store"
)

// Request is one action as submitted by a client.
type Request struct {
	Action string
	Args   ir.IRObject

	// Caller is the account whose authority accompanies the action.
	Caller string

	// Time is the block time the action executes at.
	Time ledger.Timestamp

	// FlowToken correlates related requests. Empty means mint a new one.
	FlowToken string
}

// Result is what Execute recorded.
type Result struct {
	Invocation ir.Invocation
	Completion ir.Completion

	// Recipients were notified after commit. Empty for rejected actions.
	Recipients []ledger.Name
}

// Engine is the single writer of the ledger tables and the action log.
//
// Thread-safety model:
//   - Execute, Submit, View, StateHash: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	mu sync.Mutex

	store    *store.Store
	contract *ledger.Contract
	account  ledger.Name
	state    *ledger.State
	clock    *Clock
	queue    *jobQueue
	flowGen  FlowTokenGenerator

	logger     *slog.Logger
	notifier   ledger.Notifier
	metrics    *metrics
	registerer prometheus.Registerer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithNotifier delivers receipts for committed actions.
func WithNotifier(n ledger.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithRegisterer registers the engine's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// Open builds an engine over s, restoring the tables and the clock from
// whatever the store already holds. contractAccount is the account the
// ledger runs under; only it may launch. A nil flowGen mints UUIDv7 tokens.
func Open(
	ctx context.Context,
	s *store.Store,
	contract *ledger.Contract,
	contractAccount ledger.Name,
	flowGen FlowTokenGenerator,
	opts ...Option,
) (*Engine, error) {
	if flowGen == nil {
		flowGen = UUIDv7Generator{}
	}
	e := &Engine{
		store:    s,
		contract: contract,
		account:  contractAccount,
		state:    ledger.NewState(),
		clock:    NewClock(),
		queue:    newJobQueue(),
		flowGen:  flowGen,
		logger:   slog.Default(),
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}

	tables, err := s.LoadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	e.state.Load(tables)

	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	e.clock.advanceTo(last)
	e.metrics.seq.Set(float64(last))

	if e.registerer != nil {
		if err := e.metrics.register(e.registerer); err != nil {
			return nil, fmt.Errorf("open engine: register metrics: %w", err)
		}
	}

	e.logger.Info("engine opened",
		"contract", contractAccount,
		"seq", last,
		"issuers", len(tables.Issuers),
		"edges", len(tables.Edges),
		"accounts", len(tables.Balances),
	)
	return e, nil
}

// Execute runs one action to completion and records it.
//
// Ledger rejections are not errors: they come back as a Result with a
// rejected completion, already persisted. An error means nothing was
// recorded: the request failed ABI checks (*RuntimeError), the context was
// cancelled, or the store write failed.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sig, ok := ir.LookupAction(req.Action)
	if !ok {
		return Result{}, unknownActionError(req.Action)
	}
	var problems []string
	for _, ve := range sig.Check(req.Args) {
		problems = append(problems, ve.Error())
	}
	caller, err := ledger.ParseName(req.Caller)
	if err != nil {
		problems = append(problems, "caller: "+err.Error())
	}
	if len(problems) > 0 {
		return Result{}, invalidArgsError(sig.Name, problems)
	}
	args := req.Args

	e.mu.Lock()
	defer e.mu.Unlock()

	flow := req.FlowToken
	if flow == "" {
		flow = e.flowGen.Generate()
	}

	// Seqs are claimed only once the action is in the log.
	seq := e.clock.Peek()
	invID, err := ir.InvocationID(flow, sig.Name, args, seq, int64(req.Time), string(caller))
	if err != nil {
		return Result{}, fmt.Errorf("execute %s: %w", sig.Name, err)
	}
	inv := ir.Invocation{
		ID:        invID,
		FlowToken: flow,
		Action:    sig.Name,
		Args:      args,
		Seq:       seq,
		Time:      int64(req.Time),
		Caller:    string(caller),
		IRVersion: ir.Version,
	}

	tx, err := e.state.Begin()
	if err != nil {
		return Result{}, fmt.Errorf("execute %s: %w", sig.Name, err)
	}

	env := ledger.Env{Now: req.Time, Caller: caller, Contract: e.account}
	outcome, code, message := ir.OutcomeOK, "", ""
	var changes ledger.ChangeSet
	if err := dispatch(e.contract, tx, env, sig.Name, args); err != nil {
		tx.Rollback()
		var le *ledger.Error
		if !errors.As(err, &le) {
			return Result{}, fmt.Errorf("execute %s: %w", sig.Name, err)
		}
		outcome, code, message = ir.OutcomeRejected, string(le.Code), le.Message
	} else {
		changes = tx.Changes()
	}

	compSeq := seq + 1
	compID, err := ir.CompletionID(invID, outcome, code, message, compSeq)
	if err != nil {
		tx.Rollback()
		return Result{}, fmt.Errorf("execute %s: %w", sig.Name, err)
	}
	comp := ir.Completion{
		ID:           compID,
		InvocationID: invID,
		Outcome:      outcome,
		Code:         code,
		Message:      message,
		Seq:          compSeq,
	}

	if err := e.store.WriteAction(ctx, inv, comp, changes); err != nil {
		tx.Rollback()
		e.logger.Error("action not recorded",
			"error", err,
			"invocation_id", invID,
			"flow_token", flow,
			"action", sig.Name,
			"seq", seq,
		)
		return Result{}, fmt.Errorf("execute %s: %w", sig.Name, err)
	}
	e.clock.advanceTo(compSeq)
	if outcome == ir.OutcomeOK {
		if _, err := tx.Commit(); err != nil {
			// The log already has the rows; reopening the engine reloads them.
			return Result{}, fmt.Errorf("execute %s: commit scope: %w", sig.Name, err)
		}
	}

	recipients := tx.Recipients()
	if e.notifier != nil {
		for _, r := range recipients {
			e.notifier.Notify(r)
			e.metrics.notified.Inc()
		}
	}

	e.metrics.actions.WithLabelValues(sig.Name, string(outcome)).Inc()
	e.metrics.seq.Set(float64(compSeq))

	if outcome == ir.OutcomeOK {
		e.logger.Debug("action committed",
			"action", sig.Name,
			"caller", caller,
			"flow_token", flow,
			"seq", seq,
		)
	} else {
		e.logger.Info("action rejected",
			"action", sig.Name,
			"caller", caller,
			"flow_token", flow,
			"code", code,
			"seq", seq,
		)
	}

	return Result{Invocation: inv, Completion: comp, Recipients: recipients}, nil
}

// Submit queues req for the Run loop and waits for its result.
func (e *Engine) Submit(ctx context.Context, req Request) (Result, error) {
	j := job{ctx: ctx, req: req, reply: make(chan reply, 1)}
	if !e.queue.Enqueue(j) {
		return Result{}, stoppedError()
	}
	select {
	case r := <-j.reply:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run executes queued requests in FIFO order until ctx is cancelled or
// Stop is called. Jobs still queued when ctx is cancelled fail with
// ENGINE_STOPPED; after Stop they are drained first.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if j, ok := e.queue.TryDequeue(); ok {
			res, err := e.Execute(j.ctx, j.req)
			j.reply <- reply{res: res, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			for {
				j, ok := e.queue.TryDequeue()
				if !ok {
					break
				}
				j.reply <- reply{err: stoppedError()}
			}
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the queue drains.
func (e *Engine) Stop() {
	e.queue.Close()
}

// View calls fn with the committed tables. fn must not retain v.
func (e *Engine) View(fn func(v ledger.View)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// StateHash digests the committed tables.
func (e *Engine) StateHash() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Hash()
}

// Seq returns the last seq handed out.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

// Contract returns the ledger the engine executes against.
func (e *Engine) Contract() *ledger.Contract {
	return e.contract
}

// ContractAccount returns the account the ledger runs under.
func (e *Engine) ContractAccount() ledger.Name {
	return e.account
}

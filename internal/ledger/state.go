package ledger

import (
	"errors"

	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/state"
)

// Table names, shared with the SQLite store.
const (
	TableIssuers  = "issuers"
	TableEdges    = "connections"
	TableBalances = "accounts"
)

// ErrScopeOpen is returned by Begin while another action scope is open.
var ErrScopeOpen = errors.New("ledger: an action scope is already open")

// View is read access to the three tables.
type View interface {
	Issuer(id Name) (Issuer, bool)
	Edge(from, peer Name) (Edge, bool)
	Balance(owner, issuer Name) (Balance, bool)
	EachEdge(from Name, fn func(Edge) bool)
	EachBalance(owner Name, fn func(Balance) bool)
}

// State holds the committed tables.
type State struct {
	issuers  *state.Table[Issuer]
	edges    *state.Table[Edge]
	balances *state.Table[Balance]
	open     bool
}

// NewState returns empty tables.
func NewState() *State {
	return &State{
		issuers:  state.NewTable[Issuer](TableIssuers),
		edges:    state.NewTable[Edge](TableEdges),
		balances: state.NewTable[Balance](TableBalances),
	}
}

// Load inserts committed rows, typically read back from the store.
func (s *State) Load(cs ChangeSet) {
	for _, r := range cs.Issuers {
		s.issuers.Put(r.Scope, r.Key, r.Value)
	}
	for _, r := range cs.Edges {
		s.edges.Put(r.Scope, r.Key, r.Value)
	}
	for _, r := range cs.Balances {
		s.balances.Put(r.Scope, r.Key, r.Value)
	}
}

// Issuer implements View.
func (s *State) Issuer(id Name) (Issuer, bool) {
	return s.issuers.Get(string(id), string(id))
}

// Edge implements View.
func (s *State) Edge(from, peer Name) (Edge, bool) {
	return s.edges.Get(string(from), string(peer))
}

// Balance implements View.
func (s *State) Balance(owner, issuer Name) (Balance, bool) {
	return s.balances.Get(string(owner), string(issuer))
}

// EachEdge implements View.
func (s *State) EachEdge(from Name, fn func(Edge) bool) {
	s.edges.Ascend(string(from), func(_ string, e Edge) bool { return fn(e) })
}

// EachBalance implements View.
func (s *State) EachBalance(owner Name, fn func(Balance) bool) {
	s.balances.Ascend(string(owner), func(_ string, b Balance) bool { return fn(b) })
}

// Snapshot returns every committed row.
func (s *State) Snapshot() ChangeSet {
	return ChangeSet{
		Issuers:  s.issuers.Rows(),
		Edges:    s.edges.Rows(),
		Balances: s.balances.Rows(),
	}
}

// Hash digests all committed rows. Two states with the same rows have the
// same hash regardless of the order the rows were written in.
func (s *State) Hash() (string, error) {
	return s.Snapshot().Hash()
}

// Begin opens the scope for one action.
func (s *State) Begin() (*Tx, error) {
	if s.open {
		return nil, ErrScopeOpen
	}
	s.open = true
	return &Tx{
		st:       s,
		issuers:  state.NewOverlay(s.issuers),
		edges:    state.NewOverlay(s.edges),
		balances: state.NewOverlay(s.balances),
	}, nil
}

// Tx is the atomic scope of one action. Reads see committed rows plus the
// action's own writes; nothing reaches the State until Commit.
type Tx struct {
	st       *State
	issuers  *state.Overlay[Issuer]
	edges    *state.Overlay[Edge]
	balances *state.Overlay[Balance]
	notify   []Name
	done     bool
}

// Issuer implements View.
func (tx *Tx) Issuer(id Name) (Issuer, bool) {
	return tx.issuers.Get(string(id), string(id))
}

// Edge implements View.
func (tx *Tx) Edge(from, peer Name) (Edge, bool) {
	return tx.edges.Get(string(from), string(peer))
}

// Balance implements View.
func (tx *Tx) Balance(owner, issuer Name) (Balance, bool) {
	return tx.balances.Get(string(owner), string(issuer))
}

// EachEdge implements View.
func (tx *Tx) EachEdge(from Name, fn func(Edge) bool) {
	tx.edges.Ascend(string(from), func(_ string, e Edge) bool { return fn(e) })
}

// EachBalance implements View.
func (tx *Tx) EachBalance(owner Name, fn func(Balance) bool) {
	tx.balances.Ascend(string(owner), func(_ string, b Balance) bool { return fn(b) })
}

func (tx *Tx) putIssuer(is Issuer) {
	tx.issuers.Put(string(is.Identity), string(is.Identity), is)
}

func (tx *Tx) putEdge(from Name, e Edge) {
	tx.edges.Put(string(from), string(e.Peer), e)
}

func (tx *Tx) putBalance(owner Name, b Balance) {
	tx.balances.Put(string(owner), string(b.Issuer), b)
}

// addRecipient queues a notification, once per identity.
func (tx *Tx) addRecipient(n Name) {
	for _, r := range tx.notify {
		if r == n {
			return
		}
	}
	tx.notify = append(tx.notify, n)
}

// Recipients lists the identities to notify once the action commits.
func (tx *Tx) Recipients() []Name {
	return append([]Name(nil), tx.notify...)
}

// Changes returns the rows the action has written so far without applying
// them.
func (tx *Tx) Changes() ChangeSet {
	return ChangeSet{
		Issuers:  tx.issuers.Changes(),
		Edges:    tx.edges.Changes(),
		Balances: tx.balances.Changes(),
	}
}

// Commit applies the action's writes and returns them.
func (tx *Tx) Commit() (ChangeSet, error) {
	if tx.done {
		return ChangeSet{}, state.ErrClosed
	}
	var cs ChangeSet
	var err error
	if cs.Issuers, err = tx.issuers.Commit(); err != nil {
		return ChangeSet{}, err
	}
	if cs.Edges, err = tx.edges.Commit(); err != nil {
		return ChangeSet{}, err
	}
	if cs.Balances, err = tx.balances.Commit(); err != nil {
		return ChangeSet{}, err
	}
	tx.close()
	return cs, nil
}

// Rollback discards the action's writes. Safe to call after Commit.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.issuers.Discard()
	tx.edges.Discard()
	tx.balances.Discard()
	tx.notify = nil
	tx.close()
}

func (tx *Tx) close() {
	tx.done = true
	tx.st.open = false
}

// ChangeSet lists rows in (scope, key) order per table.
type ChangeSet struct {
	Issuers  []state.Row[Issuer]
	Edges    []state.Row[Edge]
	Balances []state.Row[Balance]
}

// Empty reports whether no row was written.
func (cs ChangeSet) Empty() bool {
	return len(cs.Issuers) == 0 && len(cs.Edges) == 0 && len(cs.Balances) == 0
}

// Hash digests the rows via canonical JSON.
func (cs ChangeSet) Hash() (string, error) {
	issuers := make(ir.IRArray, len(cs.Issuers))
	for i, r := range cs.Issuers {
		issuers[i] = r.Value.IR()
	}
	edges := make(ir.IRArray, len(cs.Edges))
	for i, r := range cs.Edges {
		obj := r.Value.IR()
		obj["from"] = ir.IRString(r.Scope)
		edges[i] = obj
	}
	balances := make(ir.IRArray, len(cs.Balances))
	for i, r := range cs.Balances {
		obj := r.Value.IR()
		obj["owner"] = ir.IRString(r.Scope)
		balances[i] = obj
	}
	return ir.StateHash(ir.IRObject{
		TableIssuers:  issuers,
		TableEdges:    edges,
		TableBalances: balances,
	})
}

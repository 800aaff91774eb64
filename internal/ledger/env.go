package ledger

// Env carries the per-action context the host environment supplies.
type Env struct {
	// Now is the block time the action executes at.
	Now Timestamp

	// Caller is the identity whose authorization accompanies the action.
	Caller Name

	// Contract is the account the ledger runs under. Only it may launch.
	Contract Name
}

// Accounts answers whether an account exists on the host chain.
type Accounts interface {
	Exists(Name) bool
}

// AccountsFunc adapts a function to Accounts.
type AccountsFunc func(Name) bool

// Exists implements Accounts.
func (f AccountsFunc) Exists(n Name) bool {
	return f(n)
}

// AnyAccount treats every well-formed name as existing.
var AnyAccount Accounts = AccountsFunc(func(Name) bool { return true })

// AccountSet is a fixed set of known accounts.
type AccountSet map[Name]struct{}

// NewAccountSet builds a set from names.
func NewAccountSet(names ...Name) AccountSet {
	s := make(AccountSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Exists implements Accounts.
func (s AccountSet) Exists(n Name) bool {
	_, ok := s[n]
	return ok
}

// Notifier delivers action receipts to the parties of a committed transfer.
type Notifier interface {
	Notify(recipient Name)
}

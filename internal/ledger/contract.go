package ledger

import "fmt"

// Contract executes ledger actions against a Tx.
//
// Contract holds no table state of its own; every method reads and writes
// only through the Tx it is given, and returns an *Error (never a partial
// write the caller must undo beyond Rollback).
type Contract struct {
	params   Params
	accounts Accounts
}

// New returns a contract with the given params and account oracle.
func New(params Params, accounts Accounts) (*Contract, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = AnyAccount
	}
	return &Contract{params: params, accounts: accounts}, nil
}

// Params returns the contract's constants.
func (c *Contract) Params() Params {
	return c.params
}

func requireAuth(env Env, actor Name) error {
	if env.Caller != actor {
		return newErrorf(CodeMissingAuth, map[string]string{"actor": string(actor)},
			"missing authority of %s", actor)
	}
	return nil
}

func (c *Contract) requireAccount(n Name, role string) error {
	if !c.accounts.Exists(n) {
		return newErrorf(CodeAccountNotFound, map[string]string{role: string(n)},
			"%s account %s does not exist", role, n)
	}
	return nil
}

// applied returns the issuer row or NOT_APPLIED.
func applied(v View, id Name) (Issuer, error) {
	is, ok := v.Issuer(id)
	if !ok {
		return Issuer{}, newErrorf(CodeNotApplied, map[string]string{"identity": string(id)},
			"%s has not applied for ubi yet", id)
	}
	return is, nil
}

// accepted returns the issuer row if it is accepted.
func accepted(v View, id Name) (Issuer, error) {
	is, err := applied(v, id)
	if err != nil {
		return Issuer{}, err
	}
	if !is.IsAccepted() {
		return Issuer{}, newErrorf(CodeNotAccepted, map[string]string{"identity": string(id)},
			"%s is not accepted by any referral yet", id)
	}
	return is, nil
}

// pending returns the issuer row if it is still awaiting acceptance.
func pending(v View, id Name) (Issuer, error) {
	is, err := applied(v, id)
	if err != nil {
		return Issuer{}, err
	}
	if is.IsAccepted() {
		return Issuer{}, newErrorf(CodeAlreadyAccepted, map[string]string{"identity": string(id)},
			"%s is already accepted", id)
	}
	return is, nil
}

func overflow(op string, err error) error {
	return newError(CodeOverflow, fmt.Sprintf("%s: %v", op, err))
}

package engine

import (
	"fmt"

	"github.com/roach88/ubi/internal/asset"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
)

// argReader decodes string args into ledger values. The first failure
// sticks, so args are checked in ABI order.
type argReader struct {
	args ir.IRObject
	err  error
}

func (r *argReader) name(key string) ledger.Name {
	if r.err != nil {
		return ""
	}
	s, _ := r.args.String(key)
	n, err := ledger.ParseName(s)
	if err != nil {
		r.err = err
	}
	return n
}

func (r *argReader) quantity(key string) asset.Quantity {
	if r.err != nil {
		return asset.Quantity{}
	}
	s, _ := r.args.String(key)
	q, err := ledger.ParseQuantity(s)
	if err != nil {
		r.err = err
	}
	return q
}

// text returns an optional string arg, "" when absent.
func (r *argReader) text(key string) string {
	s, _ := r.args.String(key)
	return s
}

// dispatch decodes args and calls the contract method for action. args must
// already have passed the signature check.
func dispatch(c *ledger.Contract, tx *ledger.Tx, env ledger.Env, action string, args ir.IRObject) error {
	r := &argReader{args: args}

	switch action {
	case ir.ActionLaunch:
		genesis := r.name("genesis")
		if r.err != nil {
			return r.err
		}
		return c.Launch(tx, env, genesis)

	case ir.ActionApply:
		identity, referral := r.name("issuer"), r.name("referral")
		if r.err != nil {
			return r.err
		}
		return c.Apply(tx, env, identity, referral)

	case ir.ActionAccept:
		identity, candidate := r.name("issuer"), r.name("candidate")
		if r.err != nil {
			return r.err
		}
		return c.Accept(tx, env, identity, candidate)

	case ir.ActionTrust, ir.ActionUntrust:
		from, to := r.name("from"), r.name("to")
		if r.err != nil {
			return r.err
		}
		if action == ir.ActionTrust {
			return c.Trust(tx, env, from, to)
		}
		return c.Untrust(tx, env, from, to)

	case ir.ActionIssue:
		identity := r.name("issuer")
		if r.err != nil {
			return r.err
		}
		return c.Issue(tx, env, identity)

	case ir.ActionTransfer, ir.ActionTrustTransfer:
		from, to, issuer := r.name("from"), r.name("to"), r.name("token_issuer")
		quantity := r.quantity("quantity")
		memo := r.text("memo")
		if r.err != nil {
			return r.err
		}
		if action == ir.ActionTransfer {
			return c.Transfer(tx, env, from, to, issuer, quantity, memo)
		}
		return c.TrustTransfer(tx, env, from, to, issuer, quantity, memo)

	case ir.ActionSwap:
		from, to := r.name("from"), r.name("to")
		fromIssuer, toIssuer := r.name("from_token_issuer"), r.name("to_token_issuer")
		quantity := r.quantity("quantity")
		if r.err != nil {
			return r.err
		}
		return c.Swap(tx, env, from, to, fromIssuer, toIssuer, quantity)
	}

	// LookupAction and this switch disagree.
	return fmt.Errorf("dispatch: no handler for action %q", action)
}

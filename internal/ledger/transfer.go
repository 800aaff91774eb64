package ledger

import (
	"strconv"

	"github.com/roach88/ubi/internal/asset"
)

// Transfer moves quantity of issuer's currency from one accepted identity
// to another.
func (c *Contract) Transfer(tx *Tx, env Env, from, to, issuer Name, quantity asset.Quantity, memo string) error {
	if err := requireAuth(env, from); err != nil {
		return err
	}
	if err := c.checkMemo(memo); err != nil {
		return err
	}
	tx.addRecipient(from)
	tx.addRecipient(to)
	return c.move(tx, from, to, issuer, quantity, from)
}

// TrustTransfer is Transfer restricted to recipients that currently trust
// the currency's issuer.
func (c *Contract) TrustTransfer(tx *Tx, env Env, from, to, issuer Name, quantity asset.Quantity, memo string) error {
	if err := requireAuth(env, from); err != nil {
		return err
	}
	if err := c.checkMemo(memo); err != nil {
		return err
	}
	if err := requireLiveEdge(tx, to, issuer, env.Now); err != nil {
		return err
	}
	tx.addRecipient(from)
	tx.addRecipient(to)
	return c.move(tx, from, to, issuer, quantity, from)
}

// Swap exchanges quantity of fromIssuer's currency held by from for the same
// quantity of toIssuer's currency held by to. Both legs commit or neither
// does. Only to's trust in fromIssuer is checked, and only from authorizes.
func (c *Contract) Swap(tx *Tx, env Env, from, to, fromIssuer, toIssuer Name, quantity asset.Quantity) error {
	if err := requireAuth(env, from); err != nil {
		return err
	}
	if err := requireLiveEdge(tx, to, fromIssuer, env.Now); err != nil {
		return err
	}
	tx.addRecipient(from)
	tx.addRecipient(to)
	if err := c.move(tx, from, to, fromIssuer, quantity, from); err != nil {
		return err
	}
	return c.move(tx, to, from, toIssuer, quantity, from)
}

func (c *Contract) checkMemo(memo string) error {
	if len(memo) > c.params.MemoMax {
		return newErrorf(CodeMemoTooLong, map[string]string{"bytes": strconv.Itoa(len(memo))},
			"memo has more than %d bytes", c.params.MemoMax)
	}
	return nil
}

// move is the shared body of every transfer leg.
func (c *Contract) move(tx *Tx, from, to, issuer Name, quantity asset.Quantity, payer Name) error {
	if from == to {
		return newError(CodeSelfTransfer, "cannot transfer to self")
	}
	if err := c.requireAccount(to, "to"); err != nil {
		return err
	}
	if !quantity.IsValid() {
		return newErrorf(CodeInvalidQuantity, map[string]string{"quantity": quantity.String()},
			"invalid quantity %s", quantity)
	}
	if !quantity.IsPositive() {
		return newError(CodeNonPositive, "must transfer positive quantity")
	}
	if quantity.Symbol != c.params.Symbol {
		return newErrorf(CodeSymbolMismatch, map[string]string{"symbol": quantity.Symbol.String()},
			"%s symbol mismatch: got %s", c.params.Symbol.Code, quantity.Symbol)
	}
	if _, err := accepted(tx, from); err != nil {
		return err
	}
	if _, err := accepted(tx, to); err != nil {
		return err
	}
	if err := debit(tx, from, issuer, quantity); err != nil {
		return err
	}
	return credit(tx, to, issuer, quantity, payer)
}

package ledger

import "github.com/roach88/ubi/internal/asset"

// credit adds amount of issuer's currency to owner. A missing row is created
// and charged to payer; an existing row keeps its original payer. A zero
// amount still creates the row.
func credit(tx *Tx, owner, issuer Name, amount asset.Quantity, payer Name) error {
	b, ok := tx.Balance(owner, issuer)
	if !ok {
		tx.putBalance(owner, Balance{Issuer: issuer, Amount: amount, Payer: payer})
		return nil
	}
	sum, err := b.Amount.Add(amount)
	if err != nil {
		return overflow("credit", err)
	}
	b.Amount = sum
	tx.putBalance(owner, b)
	return nil
}

// debit removes amount of issuer's currency from owner. Emptied rows stay.
func debit(tx *Tx, owner, issuer Name, amount asset.Quantity) error {
	b, ok := tx.Balance(owner, issuer)
	if !ok {
		return newErrorf(CodeNoBalance, map[string]string{"owner": string(owner), "issuer": string(issuer)},
			"%s holds no %s balance", owner, issuer)
	}
	if b.Amount.Amount < amount.Amount {
		return newErrorf(CodeOverdrawn,
			map[string]string{"owner": string(owner), "issuer": string(issuer), "balance": b.Amount.String()},
			"overdrawn balance: %s has %s, needs %s", owner, b.Amount, amount)
	}
	rest, err := b.Amount.Sub(amount)
	if err != nil {
		return overflow("debit", err)
	}
	b.Amount = rest
	tx.putBalance(owner, b)
	return nil
}

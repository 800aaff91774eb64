package ledger

import "github.com/roach88/ubi/internal/ir"

// IR renders the issuer row as an IR object.
func (i Issuer) IR() ir.IRObject {
	return ir.IRObject{
		"identity":         ir.IRString(i.Identity),
		"state":            ir.IRString(i.State.String()),
		"referral":         ir.IRString(i.Referral),
		"pending_referral": ir.IRString(i.PendingReferral),
		"last_issue":       i.LastIssue.IR(),
		"supply":           ir.IRString(i.Supply.String()),
		"next_issue":       ir.IRString(i.NextIssue.String()),
		"payer":            ir.IRString(i.Payer),
	}
}

// IR renders the edge row as an IR object.
func (e Edge) IR() ir.IRObject {
	return ir.IRObject{
		"peer":      ir.IRString(e.Peer),
		"expiry":    e.Expiry.IR(),
		"revocable": ir.IRBool(e.Revocable),
		"payer":     ir.IRString(e.Payer),
	}
}

// IR renders the balance row as an IR object.
func (b Balance) IR() ir.IRObject {
	return ir.IRObject{
		"issuer": ir.IRString(b.Issuer),
		"amount": ir.IRString(b.Amount.String()),
		"payer":  ir.IRString(b.Payer),
	}
}

// IR renders the expiry; "never" has no at field.
func (e Expiry) IR() ir.IRObject {
	if !e.Finite {
		return ir.IRObject{"never": ir.IRBool(true)}
	}
	return ir.IRObject{"at": ir.IRInt(e.At)}
}

// IR renders the gate; a blocked gate has no at field.
func (g IssueGate) IR() ir.IRObject {
	if !g.Open {
		return ir.IRObject{"blocked": ir.IRBool(true)}
	}
	return ir.IRObject{"at": ir.IRInt(g.At)}
}

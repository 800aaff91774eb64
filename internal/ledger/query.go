package ledger

import "github.com/roach88/ubi/internal/asset"

// Supply returns the total minted by issuer, or zero for an unknown issuer.
func Supply(v View, issuer Name, sym asset.Symbol) asset.Quantity {
	if is, ok := v.Issuer(issuer); ok {
		return is.Supply
	}
	return asset.Units(0, sym)
}

// BalanceOf returns owner's holding of issuer's currency, or zero.
func BalanceOf(v View, owner, issuer Name, sym asset.Symbol) asset.Quantity {
	if b, ok := v.Balance(owner, issuer); ok {
		return b.Amount
	}
	return asset.Units(0, sym)
}

// LastIssueTime returns when identity last minted. ok is false while the
// identity cannot mint at all.
func LastIssueTime(v View, identity Name) (Timestamp, bool) {
	is, found := v.Issuer(identity)
	if !found || !is.LastIssue.Open {
		return 0, false
	}
	return is.LastIssue.At, true
}

// Referral returns the identity that accepted identity.
func Referral(v View, identity Name) (Name, bool) {
	is, ok := v.Issuer(identity)
	if !ok || !is.IsAccepted() {
		return "", false
	}
	return is.Referral, true
}

// PendingReferral returns the identity that identity last applied to.
func PendingReferral(v View, identity Name) (Name, bool) {
	is, ok := v.Issuer(identity)
	if !ok {
		return "", false
	}
	return is.PendingReferral, true
}

// IsAccepted reports whether identity has been vetted.
func IsAccepted(v View, identity Name) bool {
	is, ok := v.Issuer(identity)
	return ok && is.IsAccepted()
}

// IsLive reports whether from currently trusts to.
func IsLive(v View, from, to Name, now Timestamp) bool {
	return requireLiveEdge(v, from, to, now) == nil
}

// LiveEdgeCount counts from's live outbound edges.
func LiveEdgeCount(v View, from Name, now Timestamp) int {
	return liveCount(v, from, now)
}

// Edges lists from's outbound edges, expired ones included, in peer order.
func Edges(v View, from Name) []Edge {
	var out []Edge
	v.EachEdge(from, func(e Edge) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Balances lists owner's holdings in issuer order.
func Balances(v View, owner Name) []Balance {
	var out []Balance
	v.EachBalance(owner, func(b Balance) bool {
		out = append(out, b)
		return true
	})
	return out
}

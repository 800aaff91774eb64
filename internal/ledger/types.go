package ledger

import "github.com/roach88/ubi/internal/asset"

// Acceptance is the vetting state of an issuer.
type Acceptance uint8

const (
	// Pending issuers have applied but no referral has accepted them yet.
	Pending Acceptance = iota
	// Accepted issuers may mint, trust and transact.
	Accepted
)

// String returns "pending" or "accepted".
func (a Acceptance) String() string {
	if a == Accepted {
		return "accepted"
	}
	return "pending"
}

// ParseAcceptance is the inverse of String.
func ParseAcceptance(s string) (Acceptance, bool) {
	switch s {
	case "accepted":
		return Accepted, true
	case "pending":
		return Pending, true
	}
	return Pending, false
}

// Issuer is the registry row of an identity that has launched or applied.
type Issuer struct {
	Identity Name
	State    Acceptance

	// Referral is the identity that vouched for this one. Only meaningful
	// once State is Accepted; the genesis identity is its own referral.
	Referral Name

	// PendingReferral is the referral the identity last applied to.
	PendingReferral Name

	LastIssue IssueGate
	Supply    asset.Quantity
	NextIssue asset.Quantity

	// Payer is charged for the row's storage.
	Payer Name
}

// IsAccepted reports whether the issuer has been vetted.
func (i Issuer) IsAccepted() bool {
	return i.State == Accepted
}

// Edge is a directed trust edge from the scope identity to Peer.
type Edge struct {
	Peer      Name
	Expiry    Expiry
	Revocable bool
	Payer     Name
}

// Live reports whether the edge is in force at now.
func (e Edge) Live(now Timestamp) bool {
	return e.Expiry.After(now)
}

// Balance is an owner's holding of one issuer's currency.
type Balance struct {
	Issuer Name
	Amount asset.Quantity
	Payer  Name
}

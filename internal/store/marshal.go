package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ubi/internal/asset"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
)

// marshalArgs stores args as canonical JSON so the column is byte-stable.
func marshalArgs(args ir.IRObject) (string, error) {
	if args == nil {
		args = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

func unmarshalArgs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

func parseQuantity(column, s string) (asset.Quantity, error) {
	q, err := asset.Parse(s)
	if err != nil {
		return asset.Quantity{}, fmt.Errorf("column %s: %w", column, err)
	}
	return q, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// issuerRow is the column form of ledger.Issuer.
type issuerRow struct {
	identity, state, referral, pending string
	gateOpen                           bool
	gateAt                             int64
	supply, next, payer                string
}

func (r issuerRow) decode() (ledger.Issuer, error) {
	acc, ok := ledger.ParseAcceptance(r.state)
	if !ok {
		return ledger.Issuer{}, fmt.Errorf("issuer %s: unknown state %q", r.identity, r.state)
	}
	supply, err := parseQuantity("supply", r.supply)
	if err != nil {
		return ledger.Issuer{}, fmt.Errorf("issuer %s: %w", r.identity, err)
	}
	next, err := parseQuantity("next_issue", r.next)
	if err != nil {
		return ledger.Issuer{}, fmt.Errorf("issuer %s: %w", r.identity, err)
	}
	gate := ledger.Blocked()
	if r.gateOpen {
		gate = ledger.IssuedAt(ledger.Timestamp(r.gateAt))
	}
	return ledger.Issuer{
		Identity:        ledger.Name(r.identity),
		State:           acc,
		Referral:        ledger.Name(r.referral),
		PendingReferral: ledger.Name(r.pending),
		LastIssue:       gate,
		Supply:          supply,
		NextIssue:       next,
		Payer:           ledger.Name(r.payer),
	}, nil
}

func decodeEdge(peer string, finite bool, at int64, revocable bool, payer string) ledger.Edge {
	expiry := ledger.Never()
	if finite {
		expiry = ledger.ExpiresAt(ledger.Timestamp(at))
	}
	return ledger.Edge{
		Peer:      ledger.Name(peer),
		Expiry:    expiry,
		Revocable: revocable,
		Payer:     ledger.Name(payer),
	}
}

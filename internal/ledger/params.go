package ledger

import (
	"fmt"

	"github.com/roach88/ubi/internal/asset"
)

// Params are the economic constants of the ledger.
type Params struct {
	// Symbol is the unit every issuer currency is denominated in.
	Symbol asset.Symbol

	// Initial is the first mint amount after acceptance.
	Initial asset.Quantity

	// Delta is subtracted from the next mint amount after every mint. The
	// amount floors at zero, so when Delta does not divide Initial the last
	// mint is the remainder.
	Delta asset.Quantity

	// RoyaltyPercent of every mint goes to the issuer's referral.
	RoyaltyPercent int64

	// IssueWait is the minimum spacing between two mints.
	IssueWait Duration

	// Grace is how long an untrusted edge stays live.
	Grace Duration

	// EdgeCap bounds the live outbound edges of one identity.
	EdgeCap int

	// MemoMax bounds transfer memos in bytes.
	MemoMax int
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		Symbol:         asset.UBI,
		Initial:        asset.Units(1000000, asset.UBI), // 100.0000 UBI
		Delta:          asset.Units(100, asset.UBI),     // 0.0100 UBI
		RoyaltyPercent: 1,
		IssueWait:      Day,
		Grace:          30 * Day,
		EdgeCap:        50,
		MemoMax:        256,
	}
}

// Validate checks that the params are internally consistent.
func (p Params) Validate() error {
	if !p.Symbol.IsValid() {
		return fmt.Errorf("params: invalid symbol %s", p.Symbol)
	}
	if p.Initial.Symbol != p.Symbol || p.Delta.Symbol != p.Symbol {
		return fmt.Errorf("params: initial and delta must be denominated in %s", p.Symbol)
	}
	if !p.Initial.IsPositive() {
		return fmt.Errorf("params: initial must be positive")
	}
	if !p.Delta.IsPositive() {
		return fmt.Errorf("params: delta must be positive")
	}
	if p.RoyaltyPercent < 0 || p.RoyaltyPercent > 100 {
		return fmt.Errorf("params: royalty percent %d out of range 0-100", p.RoyaltyPercent)
	}
	if p.IssueWait < 0 || p.Grace < 0 {
		return fmt.Errorf("params: durations must not be negative")
	}
	if p.EdgeCap < 2 {
		return fmt.Errorf("params: edge cap %d cannot hold the acceptance edges", p.EdgeCap)
	}
	if p.MemoMax < 0 {
		return fmt.Errorf("params: memo max must not be negative")
	}
	return nil
}

// Emissions returns how many mints an issuer gets before exhaustion.
func (p Params) Emissions() int64 {
	return (p.Initial.Amount + p.Delta.Amount - 1) / p.Delta.Amount
}

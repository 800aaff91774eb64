package ledger

import (
	"strconv"

	"github.com/roach88/ubi/internal/asset"
)

// Issue mints identity's next emission. The referral's royalty is carved out
// of the minted amount, and the next emission shrinks by Delta.
func (c *Contract) Issue(tx *Tx, env Env, identity Name) error {
	if err := requireAuth(env, identity); err != nil {
		return err
	}
	is, err := accepted(tx, identity)
	if err != nil {
		return err
	}
	if !is.LastIssue.Allows(env.Now, c.params.IssueWait) {
		return newErrorf(CodeIssueTooEarly,
			map[string]string{"identity": string(identity), "next": strconv.FormatInt(int64(is.LastIssue.At.Add(c.params.IssueWait))+1, 10)},
			"issue too early: %s last issued at %d", identity, is.LastIssue.At)
	}
	q := is.NextIssue
	if !q.IsPositive() {
		return newErrorf(CodeQuotaExhausted, map[string]string{"identity": string(identity)},
			"%s has no more ubi to issue", identity)
	}

	supply, err := is.Supply.Add(q)
	if err != nil {
		return overflow("issue", err)
	}
	next, err := q.Sub(c.params.Delta)
	if err != nil {
		return overflow("issue", err)
	}
	// A short final step leaves the quota at zero.
	if next.Amount < 0 {
		next = asset.Units(0, next.Symbol)
	}
	is.LastIssue = IssuedAt(env.Now)
	is.Supply = supply
	is.NextIssue = next
	tx.putIssuer(is)

	cut := q.Percent(c.params.RoyaltyPercent)
	own, err := q.Sub(cut)
	if err != nil {
		return overflow("issue", err)
	}
	if err := credit(tx, identity, identity, own, identity); err != nil {
		return err
	}
	return credit(tx, is.Referral, identity, cut, identity)
}

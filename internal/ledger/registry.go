package ledger

import "github.com/roach88/ubi/internal/asset"

// Launch registers genesis as the self-vouched root of the referral tree.
// Only the contract account may launch, once per genesis identity.
func (c *Contract) Launch(tx *Tx, env Env, genesis Name) error {
	if err := requireAuth(env, env.Contract); err != nil {
		return err
	}
	if err := c.requireAccount(genesis, "genesis"); err != nil {
		return err
	}
	if _, ok := tx.Issuer(genesis); ok {
		return newErrorf(CodeAlreadyLaunched, map[string]string{"genesis": string(genesis)},
			"issuer %s already exists", genesis)
	}

	tx.putIssuer(Issuer{
		Identity:        genesis,
		State:           Accepted,
		Referral:        genesis,
		PendingReferral: genesis,
		LastIssue:       IssuedAt(0),
		Supply:          asset.Units(0, c.params.Symbol),
		NextIssue:       c.params.Initial,
		Payer:           env.Contract,
	})
	return c.connect(tx, env, genesis, genesis, false, env.Contract)
}

// Apply records identity's application to referral. A pending applicant may
// re-apply to retarget its application; an accepted one may not.
func (c *Contract) Apply(tx *Tx, env Env, identity, referral Name) error {
	if err := requireAuth(env, identity); err != nil {
		return err
	}
	if err := c.requireAccount(referral, "referral"); err != nil {
		return err
	}
	if _, err := accepted(tx, referral); err != nil {
		return err
	}

	if _, ok := tx.Issuer(identity); !ok {
		tx.putIssuer(Issuer{
			Identity:        identity,
			State:           Pending,
			PendingReferral: referral,
			LastIssue:       Blocked(),
			Supply:          asset.Units(0, c.params.Symbol),
			NextIssue:       c.params.Initial,
			Payer:           identity,
		})
		return nil
	}

	is, err := pending(tx, identity)
	if err != nil {
		return err
	}
	is.PendingReferral = referral
	tx.putIssuer(is)
	return nil
}

// Accept promotes candidate, which must be applying to identity, and wires
// the three permanent edges candidate->candidate, identity->candidate and
// candidate->identity. Emission restarts at the initial amount no matter how
// long the application was pending.
func (c *Contract) Accept(tx *Tx, env Env, identity, candidate Name) error {
	if err := requireAuth(env, identity); err != nil {
		return err
	}
	if err := c.requireAccount(candidate, "candidate"); err != nil {
		return err
	}
	if _, err := accepted(tx, identity); err != nil {
		return err
	}
	cand, err := pending(tx, candidate)
	if err != nil {
		return err
	}
	if cand.PendingReferral != identity {
		return newErrorf(CodeWrongReferral,
			map[string]string{"candidate": string(candidate), "applied_to": string(cand.PendingReferral)},
			"candidate %s is not applying to %s", candidate, identity)
	}

	cand.State = Accepted
	cand.Referral = identity
	cand.LastIssue = IssuedAt(0)
	cand.NextIssue = c.params.Initial
	tx.putIssuer(cand)

	if err := c.connect(tx, env, candidate, candidate, false, identity); err != nil {
		return err
	}
	if err := c.connect(tx, env, identity, candidate, false, identity); err != nil {
		return err
	}
	return c.connect(tx, env, candidate, identity, false, identity)
}

// Trust creates or refreshes a revocable edge from -> to.
func (c *Contract) Trust(tx *Tx, env Env, from, to Name) error {
	if err := requireAuth(env, from); err != nil {
		return err
	}
	if err := c.requireAccount(to, "to"); err != nil {
		return err
	}
	if _, err := accepted(tx, from); err != nil {
		return err
	}
	if _, err := accepted(tx, to); err != nil {
		return err
	}
	return c.connect(tx, env, from, to, true, from)
}

// Untrust starts the grace period on the revocable edge from -> to.
func (c *Contract) Untrust(tx *Tx, env Env, from, to Name) error {
	if err := requireAuth(env, from); err != nil {
		return err
	}
	if err := c.requireAccount(to, "to"); err != nil {
		return err
	}
	if _, err := accepted(tx, from); err != nil {
		return err
	}
	if _, err := accepted(tx, to); err != nil {
		return err
	}
	return c.disconnect(tx, env, from, to)
}

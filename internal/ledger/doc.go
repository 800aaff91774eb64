// Package ledger implements the UBI trust ledger state machine.
//
// Every vetted identity is an issuer of its own sub-currency. Identities join
// by applying to an accepted referral and being accepted by it; acceptance
// wires three permanent trust edges and unlocks a decaying emission stream.
// Value moves between identities through per-(owner, issuer) balance rows,
// optionally gated on the recipient trusting the currency's issuer.
//
// The package is pure: each action reads and writes through a *Tx opened on a
// *State and either returns nil (caller commits) or a *Error (caller rolls
// back). Time, caller and storage payer arrive explicitly in an Env, so the
// same sequence of actions always yields the same tables.
//
// # Tables
//
//   - issuers:  scope identity, key identity  -> Issuer
//   - edges:    scope source,   key peer      -> Edge
//   - balances: scope owner,    key issuer    -> Balance
//
// Rows are never deleted. An untrusted edge keeps its row with a finite
// expiry; a drained balance keeps its row at zero.
package ledger

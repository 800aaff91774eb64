// Package harness runs ledger scenarios written in YAML.
//
// A scenario drives the real engine over a throwaway SQLite file with a
// deterministic block clock and flow tokens, then checks assertions about
// the trace and the final tables:
//
//	name: issue_royalty
//	description: "Minting pays the referral one percent"
//	params: |
//	  params: issue_wait: "1h"
//	setup:
//	  - action: launch
//	    caller: ubi
//	    args: { genesis: genesis }
//	steps:
//	  - action: issue
//	    caller: genesis
//	    at: 2h
//	    args: { issuer: genesis }
//	  - action: issue
//	    caller: genesis
//	    advance: 30m
//	    args: { issuer: genesis }
//	    expect: { outcome: rejected, code: ISSUE_TOO_EARLY }
//	assertions:
//	  - type: balance
//	    owner: genesis
//	    issuer: genesis
//	    equals: "100.0000 UBI"
//
// Setup steps must commit. A flow step without an expect clause must
// commit too; expect.error names an engine error code (UNKNOWN_ACTION,
// INVALID_ARGS) for requests that never reach the ledger.
//
// # Assertion Types
//
//   - balance: owner's holding of issuer's currency equals a quantity
//   - issuer: fields of an issuer row (state, referral, pending_referral,
//     supply, next_issue, last_issue)
//   - edge: the from -> to edge (exists, live, revocable, expiry)
//   - final_state: a row of a persisted table, matched by where
//   - trace_contains, trace_order, trace_count: invocations in the trace
//   - replay: the action log replays to the same state
//
// Times are offsets from the scenario start, written as Go durations with
// an extra "d" unit for days ("1d12h").
//
// # Golden Traces
//
// RunWithGolden compares the trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness

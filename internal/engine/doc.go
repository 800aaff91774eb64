// Package engine runs ledger actions.
//
// The engine is the single writer of the ledger. For every action it:
//
//  1. stamps the invocation with a seq from the logical Clock and a flow token
//  2. checks the arguments against the action ABI
//  3. runs the contract inside one state scope
//  4. writes the invocation, its completion and the changed rows to the store
//     in one SQLite transaction
//  5. commits the scope and notifies the action's recipients
//
// A rejected action still gets an invocation and a completion, but no rows.
// If the store write fails the scope is rolled back, so memory and disk
// never disagree.
//
// Execute may be called directly from any goroutine; calls are serialized.
// Run drains a FIFO queue fed by Submit for callers that prefer a channel
// handoff to a shared lock.
//
// Seq numbers are logical time. Block time (the ledger's notion of "now") is
// an input carried on each request and is never read from the wall clock
// here, so a log replays to the same state.
package engine

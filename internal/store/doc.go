// Package store persists the action log and the ledger tables in SQLite.
//
// Each committed or rejected action is written as one invocation row, one
// completion row and the ledger rows it changed, all in a single
// transaction. The ledger tables are therefore always the fold of the log,
// which is what replay checks.
//
// Reads order by seq so results are identical across runs. Quantities are
// stored in their string form ("100.0000 UBI").
//
// The database runs in WAL mode with one open connection; the engine is
// the only writer.
package store

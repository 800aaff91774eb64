// Package state provides the keyed-map contract the ledger runs on.
//
// A Table is a two-level ordered map: rows are partitioned by a scope (the
// owning identity) and ordered by primary key inside each scope. This mirrors
// how the persisted tables are sharded by owner/issuer key, so reasoning about
// one action reduces to the handful of scopes it touches.
//
// An Overlay buffers the writes of a single action on top of a Table. Reads
// through the overlay observe the committed rows plus the action's own writes,
// so every read-then-write inside one action sees a single snapshot. Commit
// folds the buffered rows into the table and reports them as a change list;
// Discard drops them, which is how a failed action leaves no trace.
//
// Ordering is plain byte order on scope and key strings, so iteration order
// is identical across runs. Replay depends on that.
package state

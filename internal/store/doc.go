// Package store provides durable SQLite storage for the catchup pipeline:
// the run ledger, the append-only raw-page archive, and the three derived
// index tables (titles, offers, assets).
//
// The central operation is CommitPage, which persists one fetched page as a
// single all-or-nothing transaction: append the raw page, upsert the index
// batches, and advance the ledger cursor. The cursor stored on the ledger
// row is the sole resumption signal; it advances through a compare-and-swap
// on its prior value, so a stale or concurrent commit is rejected with
// ErrCursorConflict instead of silently rewinding a run.
package store

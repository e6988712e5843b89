// Package ingest drives backfill runs: it loops fetch, extract, commit
// over a scope's cursor sequence until the provider reports the sequence
// exhausted or the invocation's page budget runs out.
//
// The worker never holds a database transaction across a network fetch.
// Each page is fetched first, then committed in a single transaction by
// the store, so a crash between the two leaves the run resumable at the
// prior committed cursor.
package ingest

// Package sapi is the adapter for the streaming-availability provider API.
//
// The worker consumes only the Client interface; the HTTP implementation
// here owns authentication headers, request pacing, retry/backoff, and the
// transient-vs-permanent error split. Nothing in this package touches
// storage, and no transaction is ever open while a fetch is in flight.
package sapi

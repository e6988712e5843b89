package store

import "errors"

// Sentinel errors surfaced by ledger operations. Callers match them with
// errors.Is; the wrapped messages carry run-specific detail.
var (
	// ErrRunNotFound signals that the requested run id has no ledger row.
	ErrRunNotFound = errors.New("run not found")

	// ErrScopeMismatch signals a resume attempt whose scope differs from
	// the scope the run was created with.
	ErrScopeMismatch = errors.New("run scope mismatch")

	// ErrCursorConflict signals that a commit carried a cursor that is not
	// the ledger's current cursor. It means the single-writer-per-run
	// assumption was violated, or a caller replayed a page the ledger
	// never saw.
	ErrCursorConflict = errors.New("ledger cursor conflict")

	// ErrRunTerminal signals a state transition out of completed/failed,
	// which the ledger never allows.
	ErrRunTerminal = errors.New("run already terminal")

	// ErrTitleNotFound signals that no index row exists for a title id.
	ErrTitleNotFound = errors.New("title not found")
)

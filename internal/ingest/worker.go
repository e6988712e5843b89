package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/catchup/internal/extract"
	"github.com/roach88/catchup/internal/record"
	"github.com/roach88/catchup/internal/sapi"
	"github.com/roach88/catchup/internal/store"
)

// Options bounds a single worker invocation.
type Options struct {
	// MaxPages caps how many pages this invocation commits. 0 means
	// unlimited: run until the provider reports the sequence exhausted.
	// A capped invocation leaves the run in_progress for a later resume.
	MaxPages int
}

// Worker runs the fetch, extract, commit loop for one run at a time.
type Worker struct {
	store  *store.Store
	client sapi.Client
	log    *slog.Logger
	now    func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) { w.log = log }
}

// WithClock overrides the fetched-at timestamp source. Tests use this.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

// NewWorker wires a worker over a store and a provider client.
func NewWorker(st *store.Store, client sapi.Client, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  st,
		client: client,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunBackfill begins or resumes a run and drives it forward.
//
// With runID == "" a new run is created for the scope; otherwise the
// existing run is resumed from its committed cursor. The returned Run is
// the ledger row as of when the invocation stopped, whatever the reason.
//
// Failure handling follows the error taxonomy: transient fetch failures
// and commit failures return without touching the run's status, so the
// run stays resumable; permanent fetch failures mark the run failed
// before returning.
func (w *Worker) RunBackfill(ctx context.Context, scope record.Scope, params map[string]string, runID string, opts Options) (record.Run, error) {
	run, err := w.store.BeginOrResume(ctx, scope, runID)
	if err != nil {
		return record.Run{}, err
	}

	log := w.log.With("run_id", run.ID, "scope", scope.String())

	if run.Status.Terminal() {
		log.Info("run already terminal, nothing to do", "status", run.Status)
		return run, nil
	}

	log.Info("backfill starting",
		"cursor", run.Cursor,
		"pages_committed", run.PageCount,
		"max_pages", opts.MaxPages,
	)

	cursor := run.Cursor
	pages := 0
	for {
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			log.Info("page budget reached, leaving run resumable", "pages", pages)
			break
		}

		fetchedAt := w.now()
		page, err := w.client.FetchPage(ctx, scope, params, cursor)
		if err != nil {
			return w.reload(ctx, run.ID), w.fetchError(ctx, log, run.ID, cursor, err)
		}

		batch, err := extract.Page(page.Payload, fetchedAt, run.ID)
		if err != nil {
			reason := err.Error()
			if markErr := w.store.MarkFailed(ctx, run.ID, reason); markErr != nil {
				log.Error("mark failed", "error", markErr)
			}
			return w.reload(ctx, run.ID), &IngestError{
				Code:    ErrCodePermanentFetch,
				Message: "undecodable page payload",
				RunID:   run.ID,
				Cursor:  cursor,
				Err:     err,
			}
		}
		for _, skip := range batch.Skipped {
			log.Warn("record skipped during extraction",
				"title_id", skip.TitleID, "kind", skip.Kind, "reason", skip.Reason)
		}

		result, err := w.store.CommitPage(ctx, store.PageCommit{
			RunID:      run.ID,
			CursorUsed: cursor,
			NextCursor: page.NextCursor,
			HasMore:    page.HasMore,
			Payload:    page.Payload,
			FetchedAt:  fetchedAt,
			ItemCount:  page.ItemCount,
			Titles:     batch.Titles,
			Offers:     batch.Offers,
			Assets:     batch.Assets,
		})
		if err != nil {
			return w.reload(ctx, run.ID), w.commitError(log, run.ID, cursor, err)
		}

		log.Info("page committed",
			"page", result.PageNumber,
			"items", page.ItemCount,
			"replayed", result.Replayed,
			"has_more", page.HasMore,
		)

		pages++
		if result.Completed {
			log.Info("backfill completed", "pages_this_invocation", pages)
			break
		}
		cursor = page.NextCursor
	}

	return w.store.GetRun(ctx, run.ID)
}

// fetchError maps a provider failure onto the taxonomy. Permanent
// failures mark the run failed; transient ones leave it resumable.
func (w *Worker) fetchError(ctx context.Context, log *slog.Logger, runID, cursor string, err error) error {
	if sapi.IsTransient(err) {
		log.Warn("transient fetch failure, run stays resumable", "cursor", cursor, "error", err)
		return &IngestError{
			Code:    ErrCodeTransientFetch,
			Message: "provider fetch failed",
			RunID:   runID,
			Cursor:  cursor,
			Err:     err,
		}
	}

	log.Error("permanent fetch failure, marking run failed", "cursor", cursor, "error", err)
	if markErr := w.store.MarkFailed(ctx, runID, err.Error()); markErr != nil {
		log.Error("mark failed", "error", markErr)
	}
	return &IngestError{
		Code:    ErrCodePermanentFetch,
		Message: "provider rejected fetch",
		RunID:   runID,
		Cursor:  cursor,
		Err:     err,
	}
}

// commitError maps a store failure onto the taxonomy. Neither case marks
// the run failed: the ledger already reflects the last durable page, and
// with a cursor conflict another invocation owns the run.
func (w *Worker) commitError(log *slog.Logger, runID, cursor string, err error) error {
	if errors.Is(err, store.ErrCursorConflict) {
		log.Warn("cursor conflict, another invocation advanced the run", "cursor", cursor, "error", err)
		return &IngestError{
			Code:    ErrCodeCursorConflict,
			Message: "run advanced concurrently",
			RunID:   runID,
			Cursor:  cursor,
			Err:     err,
		}
	}

	log.Error("page commit failed, run stays at prior cursor", "cursor", cursor, "error", err)
	return &IngestError{
		Code:    ErrCodeCommitFailed,
		Message: "page commit failed",
		RunID:   runID,
		Cursor:  cursor,
		Err:     err,
	}
}

// reload returns the current ledger row, or the zero Run when even the
// read fails. Callers returning an error alongside prefer the error.
func (w *Worker) reload(ctx context.Context, runID string) record.Run {
	run, err := w.store.GetRun(ctx, runID)
	if err != nil {
		return record.Run{}
	}
	return run
}

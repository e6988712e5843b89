package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/catchup/internal/record"
)

// BeginOrResume returns the ledger row to drive a backfill invocation.
//
// With runID == "" a new pending run is created under a fresh UUIDv7 id.
// Otherwise the existing row is loaded and returned: ErrRunNotFound if no
// such run exists, ErrScopeMismatch if the stored scope differs from the
// requested one (a resumed run must crawl the exact sequence it started).
func (s *Store) BeginOrResume(ctx context.Context, scope record.Scope, runID string) (record.Run, error) {
	if runID == "" {
		return s.createRun(ctx, scope)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return record.Run{}, err
	}
	if !run.Scope.Equal(scope) {
		return record.Run{}, fmt.Errorf("%w: run %s was created for %s, requested %s",
			ErrScopeMismatch, runID, run.Scope, scope)
	}
	return run, nil
}

func (s *Store) createRun(ctx context.Context, scope record.Scope) (record.Run, error) {
	runID := s.newRunID()
	now := s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, country, catalogs_bundle, params_fingerprint, cursor, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?, ?)
	`,
		runID,
		scope.Country,
		scope.CatalogsBundle,
		scope.ParamsFingerprint,
		string(record.StatusPending),
		now,
		now,
	)
	if err != nil {
		return record.Run{}, fmt.Errorf("create run: %w", err)
	}

	return s.GetRun(ctx, runID)
}

// GetRun loads one ledger row. Returns ErrRunNotFound if absent.
func (s *Store) GetRun(ctx context.Context, runID string) (record.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, country, catalogs_bundle, params_fingerprint,
		       cursor, status, last_error, page_count, item_count,
		       created_at, updated_at
		FROM runs
		WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return record.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// MarkCompleted moves the run to completed. Idempotent: re-marking an
// already-completed run is a no-op. Marking a failed run completed returns
// ErrRunTerminal.
func (s *Store) MarkCompleted(ctx context.Context, runID string) error {
	return s.markTerminal(ctx, runID, record.StatusCompleted, "")
}

// MarkFailed moves the run to failed and records a human-readable reason.
// Idempotent in the same way as MarkCompleted.
func (s *Store) MarkFailed(ctx context.Context, runID, reason string) error {
	return s.markTerminal(ctx, runID, record.StatusFailed, reason)
}

func (s *Store) markTerminal(ctx context.Context, runID string, to record.Status, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, last_error = ?, updated_at = ?
		WHERE run_id = ? AND status NOT IN (?, ?)
	`,
		string(to),
		reason,
		s.now(),
		runID,
		string(record.StatusCompleted),
		string(record.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark %s: %w", to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark %s: rows affected: %w", to, err)
	}
	if affected > 0 {
		return nil
	}

	// No transition happened: either the run does not exist, or it is
	// already terminal. Re-marking the same terminal state is a no-op.
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == to {
		return nil
	}
	return fmt.Errorf("%w: run %s is %s, cannot mark %s", ErrRunTerminal, runID, run.Status, to)
}

// LatestCompletedRun returns the most recent completed run id for a scope.
// This anchors the currentness rule: a record is current iff its
// last_seen_run_id equals the scope's latest completed run id.
// Returns ErrRunNotFound when the scope has no completed runs.
func (s *Store) LatestCompletedRun(ctx context.Context, scope record.Scope) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id
		FROM runs
		WHERE country = ? AND catalogs_bundle = ? AND params_fingerprint = ?
		  AND status = ?
		ORDER BY updated_at DESC, created_at DESC, run_id DESC
		LIMIT 1
	`,
		scope.Country,
		scope.CatalogsBundle,
		scope.ParamsFingerprint,
		string(record.StatusCompleted),
	).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no completed run for scope %s", ErrRunNotFound, scope)
	}
	if err != nil {
		return "", fmt.Errorf("latest completed run: %w", err)
	}
	return runID, nil
}

// ListRuns returns all ledger rows, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]record.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, country, catalogs_bundle, params_fingerprint,
		       cursor, status, last_error, page_count, item_count,
		       created_at, updated_at
		FROM runs
		ORDER BY created_at DESC, run_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []record.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (record.Run, error) {
	var run record.Run
	var status string
	err := row.Scan(
		&run.ID,
		&run.Scope.Country,
		&run.Scope.CatalogsBundle,
		&run.Scope.ParamsFingerprint,
		&run.Cursor,
		&status,
		&run.LastError,
		&run.PageCount,
		&run.ItemCount,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return record.Run{}, err
	}
	run.Status = record.Status(status)
	return run, nil
}

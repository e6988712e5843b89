package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/catchup/internal/record"
)

// PageCommit carries everything CommitPage persists for one fetched page.
// CursorUsed is the cursor the page was fetched with ("" for the first
// page); it doubles as the compare-and-swap guard for the ledger advance.
type PageCommit struct {
	RunID      string
	CursorUsed string
	NextCursor string
	HasMore    bool
	Payload    []byte
	FetchedAt  time.Time
	ItemCount  int

	Titles []record.Title
	Offers []record.Offer
	Assets []record.Asset
}

// CommitResult reports what a CommitPage call did.
type CommitResult struct {
	PageNumber int  // 1-based page number assigned by the ledger
	Replayed   bool // true when the page was already durable and nothing was written
	Completed  bool // true when this page (or the replayed one) exhausted the run
}

// CommitPage atomically persists one page: the raw-page append, the three
// index upserts, and the ledger cursor advance all commit as a unit or not
// at all. On any error the prior committed cursor remains the resumption
// point.
//
// Replaying a page that is already durable (the ledger cursor equals the
// commit's NextCursor and the raw row exists) is a no-op, not an error, so
// a retried invocation can safely re-attempt an ambiguous commit. Any other
// cursor disagreement returns ErrCursorConflict.
func (s *Store) CommitPage(ctx context.Context, c PageCommit) (CommitResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit page: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var cursor, status string
	var pageCount int
	err = tx.QueryRowContext(ctx, `
		SELECT cursor, status, page_count FROM runs WHERE run_id = ?
	`, c.RunID).Scan(&cursor, &status, &pageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return CommitResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, c.RunID)
	}
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit page: read ledger: %w", err)
	}

	fresh := cursor == c.CursorUsed && !record.Status(status).Terminal()
	if !fresh {
		// The ledger may already hold this page from a commit whose success
		// the caller never observed. If so, absorb the replay.
		if cursor == c.NextCursor {
			var archived int
			err = tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM raw_pages WHERE run_id = ? AND cursor_used = ?
			`, c.RunID, c.CursorUsed).Scan(&archived)
			if err != nil {
				return CommitResult{}, fmt.Errorf("commit page: replay check: %w", err)
			}
			if archived > 0 {
				return CommitResult{
					PageNumber: pageCount,
					Replayed:   true,
					Completed:  record.Status(status) == record.StatusCompleted,
				}, nil
			}
		}
		return CommitResult{}, fmt.Errorf(
			"%w: run %s holds cursor %q, commit expected %q",
			ErrCursorConflict, c.RunID, cursor, c.CursorUsed)
	}

	pageNumber := pageCount + 1
	hash := sha256.Sum256(c.Payload)

	// ON CONFLICT DO NOTHING keeps the archive append-only even if a
	// duplicate slips past the ledger check.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO raw_pages
		(run_id, page_number, cursor_used, next_cursor, has_more, item_count,
		 response_blob, response_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, cursor_used) DO NOTHING
	`,
		c.RunID,
		pageNumber,
		c.CursorUsed,
		c.NextCursor,
		c.HasMore,
		c.ItemCount,
		c.Payload,
		hex.EncodeToString(hash[:]),
		c.FetchedAt,
	)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit page: append raw page: %w", err)
	}

	if err := upsertBatch(ctx, tx, c.Titles, c.Offers, c.Assets); err != nil {
		return CommitResult{}, fmt.Errorf("commit page: %w", err)
	}

	nextStatus := record.StatusInProgress
	completed := false
	if !c.HasMore {
		nextStatus = record.StatusCompleted
		completed = true
	}

	// Compare-and-swap on the prior cursor: a concurrent commit for the
	// same run id loses here and the whole transaction rolls back.
	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET cursor = ?, status = ?, last_error = '',
		    page_count = page_count + 1, item_count = item_count + ?,
		    updated_at = ?
		WHERE run_id = ? AND cursor = ? AND status NOT IN (?, ?)
	`,
		c.NextCursor,
		string(nextStatus),
		c.ItemCount,
		s.now(),
		c.RunID,
		c.CursorUsed,
		string(record.StatusCompleted),
		string(record.StatusFailed),
	)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit page: advance cursor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit page: rows affected: %w", err)
	}
	if affected == 0 {
		return CommitResult{}, fmt.Errorf(
			"%w: run %s cursor moved under commit of %q",
			ErrCursorConflict, c.RunID, c.CursorUsed)
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("commit page: commit tx: %w", err)
	}

	return CommitResult{PageNumber: pageNumber, Completed: completed}, nil
}

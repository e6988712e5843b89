package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catchup/internal/record"
	"github.com/roach88/catchup/internal/testutil"
)

func beginRun(t *testing.T, s *Store) record.Run {
	t.Helper()
	run, err := s.BeginOrResume(context.Background(), testScope(), "")
	require.NoError(t, err)
	return run
}

func TestCommitPage_AdvancesCursor(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	c := pageCommit(run.ID, "", "cursor-2", true)
	c.ItemCount = 3
	c.Titles = []record.Title{testTitle("t1", run.ID)}
	c.Offers = []record.Offer{testOffer("t1", "netflix", run.ID)}
	c.Assets = []record.Asset{testAsset("t1", record.AssetVerticalPoster, run.ID)}

	res, err := s.CommitPage(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, CommitResult{PageNumber: 1}, res)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", got.Cursor)
	assert.Equal(t, record.StatusInProgress, got.Status)
	assert.Equal(t, 1, got.PageCount)
	assert.Equal(t, 3, got.ItemCount)

	pages, err := s.RawPages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "", pages[0].CursorUsed)
	assert.Equal(t, "cursor-2", pages[0].NextCursor)
	assert.True(t, pages[0].HasMore)
	assert.NotEmpty(t, pages[0].Hash)
	assert.Equal(t, []byte(`{"shows":[]}`), pages[0].Payload)
}

func TestCommitPage_FinalPageCompletesRun(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	res, err := s.CommitPage(ctx, pageCommit(run.ID, "", "", false))
	require.NoError(t, err)
	assert.True(t, res.Completed)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusCompleted, got.Status)
}

func TestCommitPage_SequentialPages(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	res1, err := s.CommitPage(ctx, pageCommit(run.ID, "", "c2", true))
	require.NoError(t, err)
	res2, err := s.CommitPage(ctx, pageCommit(run.ID, "c2", "c3", true))
	require.NoError(t, err)
	res3, err := s.CommitPage(ctx, pageCommit(run.ID, "c3", "", false))
	require.NoError(t, err)

	assert.Equal(t, 1, res1.PageNumber)
	assert.Equal(t, 2, res2.PageNumber)
	assert.Equal(t, 3, res3.PageNumber)
	assert.True(t, res3.Completed)

	pages, err := s.RawPages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
	}
}

func TestCommitPage_ReplayIsNoOp(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	c := pageCommit(run.ID, "", "cursor-2", true)
	c.Titles = []record.Title{testTitle("t1", run.ID)}

	_, err := s.CommitPage(ctx, c)
	require.NoError(t, err)

	// A retried invocation re-attempts the identical commit.
	res, err := s.CommitPage(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, 1, res.PageNumber)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PageCount)

	pages, err := s.RawPages(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestCommitPage_ReplayOfFinalPage(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	c := pageCommit(run.ID, "", "", false)
	_, err := s.CommitPage(ctx, c)
	require.NoError(t, err)

	res, err := s.CommitPage(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.True(t, res.Completed)
}

func TestCommitPage_CursorConflict(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	_, err := s.CommitPage(ctx, pageCommit(run.ID, "", "c2", true))
	require.NoError(t, err)

	// A stale writer still holding the pre-advance cursor view commits a
	// different page.
	_, err = s.CommitPage(ctx, pageCommit(run.ID, "stale-cursor", "c9", true))
	assert.ErrorIs(t, err, ErrCursorConflict)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", got.Cursor)
	assert.Equal(t, 1, got.PageCount)
}

func TestCommitPage_RunNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.CommitPage(context.Background(), pageCommit("missing", "", "c2", true))
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestCommitPage_TerminalRunRejected(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	require.NoError(t, s.MarkFailed(ctx, run.ID, "gone"))

	_, err := s.CommitPage(ctx, pageCommit(run.ID, "", "c2", true))
	assert.ErrorIs(t, err, ErrCursorConflict)
}

func TestCommitPage_AllOrNothing(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	// First page commits cleanly.
	c1 := pageCommit(run.ID, "", "c2", true)
	c1.Titles = []record.Title{testTitle("t1", run.ID)}
	_, err := s.CommitPage(ctx, c1)
	require.NoError(t, err)

	// Second page carries a batch that trips a constraint mid-transaction
	// (empty title id), after the raw append and title upserts already ran.
	bad := testOffer("", "netflix", run.ID)
	c2 := pageCommit(run.ID, "c2", "c3", true)
	c2.Titles = []record.Title{testTitle("t2", run.ID)}
	c2.Offers = []record.Offer{bad}

	_, err = s.CommitPage(ctx, c2)
	require.Error(t, err)

	// Nothing from the failed commit is visible: cursor, page count, raw
	// archive, and index rows are all at their pre-commit state.
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", got.Cursor)
	assert.Equal(t, 1, got.PageCount)
	assert.Equal(t, record.StatusInProgress, got.Status)

	pages, err := s.RawPages(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	_, err = s.GetTitle(ctx, "t2")
	assert.ErrorIs(t, err, ErrTitleNotFound)

	// The run resumes from the last durable cursor as if the failed
	// commit never happened.
	c2ok := pageCommit(run.ID, "c2", "c3", true)
	c2ok.Titles = []record.Title{testTitle("t2", run.ID)}
	res, err := s.CommitPage(ctx, c2ok)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageNumber)
}

func TestCommitPage_ClearsLastError(t *testing.T) {
	s := createTestStore(t, WithRunIDGenerator(testutil.NewRunIDs("run-1").Next))
	ctx := context.Background()
	run := beginRun(t, s)

	// Simulate an earlier transient failure note on the row.
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET last_error = 'transient fetch' WHERE run_id = ?`, run.ID)
	require.NoError(t, err)

	_, err = s.CommitPage(ctx, pageCommit(run.ID, "", "c2", true))
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.LastError)
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catchup/internal/record"
	"github.com/roach88/catchup/internal/sapi"
	"github.com/roach88/catchup/internal/store"
	"github.com/roach88/catchup/internal/testutil"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClient scripts provider responses by cursor. A hook runs mid-fetch,
// standing in for work that happens while no transaction is open.
type fakeClient struct {
	pages map[string]*sapi.Page
	errs  map[string]error
	hooks map[string]func()
	calls []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages: map[string]*sapi.Page{},
		errs:  map[string]error{},
		hooks: map[string]func(){},
	}
}

func (c *fakeClient) FetchPage(_ context.Context, _ record.Scope, _ map[string]string, cursor string) (*sapi.Page, error) {
	c.calls = append(c.calls, cursor)
	if hook := c.hooks[cursor]; hook != nil {
		hook()
	}
	if err := c.errs[cursor]; err != nil {
		return nil, err
	}
	page := c.pages[cursor]
	if page == nil {
		return nil, &sapi.PermanentError{Err: fmt.Errorf("unscripted cursor %q", cursor)}
	}
	return page, nil
}

// script adds one well-formed single-show page at the given cursor.
func (c *fakeClient) script(cursor, titleID, nextCursor string, hasMore bool) {
	payload := fmt.Sprintf(`{
		"shows": [{
			"id": %q,
			"title": "Show %s",
			"showType": "movie",
			"releaseYear": 2020,
			"streamingOptions": {"de": [{
				"service": {"id": "netflix", "name": "Netflix"},
				"type": "subscription",
				"link": "https://example.com/%s",
				"quality": "hd",
				"availableSince": 1700000000,
				"expiresSoon": false
			}]}
		}],
		"hasMore": %t,
		"nextCursor": %q
	}`, titleID, titleID, titleID, hasMore, nextCursor)

	c.pages[cursor] = &sapi.Page{
		Payload:    []byte(payload),
		NextCursor: nextCursor,
		HasMore:    hasMore,
		ItemCount:  1,
	}
}

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(
		filepath.Join(t.TempDir(), "catchup.db"),
		store.WithClock(testutil.NewClock(testStart, time.Second).Now),
	)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testScope() record.Scope {
	return record.NewScope("de", []string{"netflix"}, map[string]string{"show_type": "movie"})
}

func testWorker(st *store.Store, client sapi.Client) *Worker {
	clock := testutil.NewClock(testStart, time.Second)
	return NewWorker(st, client, WithClock(clock.Now))
}

func TestRunBackfillCompletes(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "c1", true)
	client.script("c1", "tt2", "c2", true)
	client.script("c2", "tt3", "", false)

	run, err := testWorker(st, client).RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.NoError(t, err)

	assert.Equal(t, record.StatusCompleted, run.Status)
	assert.Equal(t, "", run.Cursor)
	assert.Equal(t, 3, run.PageCount)
	assert.Equal(t, 3, run.ItemCount)
	assert.Equal(t, []string{"", "c1", "c2"}, client.calls)

	titles, err := st.TitlesSeenIn(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, titles, 3)

	latest, err := st.LatestCompletedRun(context.Background(), testScope())
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest)
}

func TestRunBackfillResumeSkipsCommittedPages(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "c1", true)
	client.script("c1", "tt2", "", false)

	w := testWorker(st, client)

	run, err := w.RunBackfill(context.Background(), testScope(), nil, "", Options{MaxPages: 1})
	require.NoError(t, err)
	assert.Equal(t, record.StatusInProgress, run.Status)
	assert.Equal(t, "c1", run.Cursor)
	assert.Equal(t, 1, run.PageCount)
	assert.Equal(t, []string{""}, client.calls)

	resumed, err := w.RunBackfill(context.Background(), testScope(), nil, run.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, run.ID, resumed.ID)
	assert.Equal(t, record.StatusCompleted, resumed.Status)
	assert.Equal(t, 2, resumed.PageCount)

	// The resumed invocation must start at the committed cursor, never
	// refetch page one.
	assert.Equal(t, []string{"", "c1"}, client.calls)
}

func TestRunBackfillTransientFetchLeavesRunResumable(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "c1", true)
	client.errs["c1"] = &sapi.TransientError{Status: 503, Err: errors.New("upstream down")}

	w := testWorker(st, client)

	run, err := w.RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrCodeTransientFetch, ie.Code)
	assert.Equal(t, "c1", ie.Cursor)

	assert.Equal(t, record.StatusInProgress, run.Status)
	assert.Equal(t, "c1", run.Cursor)
	assert.Equal(t, 1, run.PageCount)

	// Once the provider recovers, the same run id finishes the sequence.
	delete(client.errs, "c1")
	client.script("c1", "tt2", "", false)

	resumed, err := w.RunBackfill(context.Background(), testScope(), nil, run.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, record.StatusCompleted, resumed.Status)
	assert.Equal(t, 2, resumed.PageCount)
}

func TestRunBackfillPermanentFetchMarksFailed(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.errs[""] = &sapi.PermanentError{Status: 403, Err: errors.New("bad credentials")}

	run, err := testWorker(st, client).RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrCodePermanentFetch, ie.Code)

	assert.Equal(t, record.StatusFailed, run.Status)
	assert.Contains(t, run.LastError, "bad credentials")
}

func TestRunBackfillUndecodablePayloadMarksFailed(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.pages[""] = &sapi.Page{Payload: []byte("not json"), HasMore: false}

	run, err := testWorker(st, client).RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.Error(t, err)

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrCodePermanentFetch, ie.Code)
	assert.Equal(t, record.StatusFailed, run.Status)
}

func TestRunBackfillCursorConflict(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "c1", true)

	w := testWorker(st, client)

	run, err := st.BeginOrResume(context.Background(), testScope(), "")
	require.NoError(t, err)

	// While the worker is fetching page one, a rival invocation commits it
	// with a different next cursor. The worker's commit must lose.
	client.hooks[""] = func() {
		_, err := st.CommitPage(context.Background(), store.PageCommit{
			RunID:      run.ID,
			CursorUsed: "",
			NextCursor: "rival",
			HasMore:    true,
			Payload:    []byte(`{"shows":[],"hasMore":true,"nextCursor":"rival"}`),
			FetchedAt:  testStart,
		})
		require.NoError(t, err)
	}

	got, err := w.RunBackfill(context.Background(), testScope(), nil, run.ID, Options{})
	require.Error(t, err)
	assert.True(t, IsCursorConflict(err))
	assert.False(t, IsRetryable(err))

	// The rival's commit stands untouched.
	assert.Equal(t, "rival", got.Cursor)
	assert.Equal(t, 1, got.PageCount)
	assert.Equal(t, record.StatusInProgress, got.Status)
}

func TestRunBackfillCommitFailure(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "c1", true)

	// Closing the store mid-fetch makes the commit fail after the page was
	// fetched successfully.
	client.hooks[""] = func() { st.Close() }

	_, err := testWorker(st, client).RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrCodeCommitFailed, ie.Code)
}

func TestRunBackfillTerminalRunIsNoOp(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "", false)

	w := testWorker(st, client)

	run, err := w.RunBackfill(context.Background(), testScope(), nil, "", Options{})
	require.NoError(t, err)
	require.Equal(t, record.StatusCompleted, run.Status)

	fetches := len(client.calls)
	again, err := w.RunBackfill(context.Background(), testScope(), nil, run.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, record.StatusCompleted, again.Status)
	assert.Len(t, client.calls, fetches, "terminal run must not fetch")
}

func TestRunBackfillScopeMismatch(t *testing.T) {
	st := createTestStore(t)
	client := newFakeClient()
	client.script("", "tt1", "", false)

	w := testWorker(st, client)

	run, err := w.RunBackfill(context.Background(), testScope(), nil, "", Options{MaxPages: 1})
	require.NoError(t, err)

	other := record.NewScope("us", []string{"netflix"}, nil)
	_, err = w.RunBackfill(context.Background(), other, nil, run.ID, Options{})
	require.ErrorIs(t, err, store.ErrScopeMismatch)
}

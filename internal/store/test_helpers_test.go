package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/catchup/internal/record"
	"github.com/roach88/catchup/internal/testutil"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a file-backed store in a temp dir with a
// deterministic clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{WithClock(testutil.NewClock(testStart, time.Second).Now)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testScope() record.Scope {
	return record.NewScope("de", []string{"netflix", "prime"}, map[string]string{"showType": "movie"})
}

func testTitle(id, runID string) record.Title {
	return record.Title{
		ID:            id,
		IMDBID:        "tt-" + id,
		Name:          "Title " + id,
		ShowType:      record.ShowTypeMovie,
		ReleaseYear:   "2020",
		FetchedAt:     testStart,
		LastSeenRunID: runID,
	}
}

func testOffer(titleID, serviceID, runID string) record.Offer {
	return record.Offer{
		TitleID:        titleID,
		Country:        "de",
		ServiceID:      serviceID,
		ServiceName:    "Service " + serviceID,
		OfferType:      "subscription",
		Quality:        "hd",
		TitlePageLink:  "https://example.test/" + titleID,
		Audios:         []record.Locale{{Language: "en", Region: "US"}},
		Subtitles:      []record.Subtitle{{Locale: record.Locale{Language: "de"}, ClosedCaptions: true}},
		AvailableSince: 1700000000,
		FetchedAt:      testStart,
		LastSeenRunID:  runID,
	}
}

func testAsset(titleID string, kind record.AssetKind, runID string) record.Asset {
	return record.Asset{
		TitleID:       titleID,
		Kind:          kind,
		ImageURLs:     map[string]string{"w240": "https://img.example.test/" + titleID},
		FetchedAt:     testStart,
		LastSeenRunID: runID,
	}
}

// pageCommit builds a minimal commit for one page of a run.
func pageCommit(runID, cursorUsed, nextCursor string, hasMore bool) PageCommit {
	return PageCommit{
		RunID:      runID,
		CursorUsed: cursorUsed,
		NextCursor: nextCursor,
		HasMore:    hasMore,
		Payload:    []byte(`{"shows":[]}`),
		FetchedAt:  testStart,
	}
}

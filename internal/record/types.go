package record

import "time"

// Status tracks the ledger lifecycle of a run.
//
// State machine: pending -> in_progress -> {completed, failed}.
// in_progress is entered on the first committed page. No transition leaves
// a terminal state except by starting a brand-new run id.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one ledger entry: a bounded or resumable ingestion attempt over a
// fixed scope. The cursor stored here is the sole resumption signal; it only
// ever advances along the sequence the provider defines.
type Run struct {
	ID        string
	Scope     Scope
	Cursor    string // "" means the first page has not been committed yet
	Status    Status
	LastError string
	PageCount int
	ItemCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawPage is one verbatim provider response, archived append-only.
// (RunID, PageNumber) and (RunID, CursorUsed) are both unique; a replayed
// commit for the same page must not create a second row.
type RawPage struct {
	RunID      string
	PageNumber int
	CursorUsed string // cursor the page was fetched with, "" for the first page
	NextCursor string
	HasMore    bool
	ItemCount  int
	Payload    []byte // unmodified provider response bytes
	Hash       string // sha256 of Payload, hex
	FetchedAt  time.Time
}

// ShowType is the provider's high-level content type. Expected values are
// "movie" and "series" but new values pass through unmodified.
type ShowType string

const (
	ShowTypeMovie  ShowType = "movie"
	ShowTypeSeries ShowType = "series"
)

// Title is the title-level index record.
//
// Natural key: provider title id. Later observations overwrite descriptive
// fields but never remove the row.
type Title struct {
	ID            string
	IMDBID        string
	TMDBID        string
	Name          string
	OriginalName  string
	ShowType      ShowType
	ReleaseYear   string
	FetchedAt     time.Time
	LastSeenRunID string
}

// Key returns the natural upsert key.
func (t Title) Key() string { return t.ID }

// OfferKey is the composite natural key of an Offer.
type OfferKey struct {
	TitleID   string
	Country   string
	ServiceID string
	OfferType string
}

// Offer is one availability offer for a title in one country on one service.
//
// An offer absent from the latest run is never deleted; its staleness is
// inferred by comparing LastSeenRunID against the current run id.
type Offer struct {
	TitleID        string
	Country        string
	ServiceID      string
	ServiceName    string
	OfferType      string // expected: free/subscription/rent/buy/addon, kept open
	Quality        string // expected: sd/hd/qhd/uhd, kept open
	TitlePageLink  string
	WatchLink      string
	Audios         []Locale
	Subtitles      []Subtitle
	AvailableSince int64 // epoch seconds
	ExpiresSoon    bool
	ExpiresOn      *int64 // epoch seconds, nil when the provider gives none
	FetchedAt      time.Time
	LastSeenRunID  string
}

// Key returns the natural upsert key.
func (o Offer) Key() OfferKey {
	return OfferKey{
		TitleID:   o.TitleID,
		Country:   o.Country,
		ServiceID: o.ServiceID,
		OfferType: o.OfferType,
	}
}

// AssetKind partitions image URLs by layout. The four kinds below are what
// the provider emits today; unknown kinds are stored as-is.
type AssetKind string

const (
	AssetVerticalPoster     AssetKind = "verticalPoster"
	AssetVerticalBackdrop   AssetKind = "verticalBackdrop"
	AssetHorizontalPoster   AssetKind = "horizontalPoster"
	AssetHorizontalBackdrop AssetKind = "horizontalBackdrop"
)

// AssetKey is the composite natural key of an Asset.
type AssetKey struct {
	TitleID string
	Kind    AssetKind
}

// Asset maps resolution labels (w240, w360, ...) to image URLs for one
// title and one asset kind.
type Asset struct {
	TitleID       string
	Kind          AssetKind
	ImageURLs     map[string]string
	FetchedAt     time.Time
	LastSeenRunID string
}

// Key returns the natural upsert key.
func (a Asset) Key() AssetKey {
	return AssetKey{TitleID: a.TitleID, Kind: a.Kind}
}

// Package extract maps one raw provider page into derived index records.
//
// Extraction is pure: no I/O, no clocks, no randomness. Identical input
// bytes always yield identical output records (in identical order), which
// makes replay against archived raw pages safe.
//
// Fault isolation is per record. A malformed offer on a title must not
// discard the title, the title's other offers, or anything else on the
// page; the bad record is skipped and reported in Batch.Skipped.
package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/catchup/internal/record"
)

// Batch is everything extracted from one page, plus what was skipped.
type Batch struct {
	Titles  []record.Title
	Offers  []record.Offer
	Assets  []record.Asset
	Skipped []Skip
}

// Skip describes one record dropped during extraction.
type Skip struct {
	TitleID string // "" when the show id itself was unreadable
	Kind    string // "show", "title", "offer", or "asset"
	Reason  string
}

// envelope is the provider's top-level page shape. Shows are kept as raw
// messages so one undecodable show cannot poison its siblings.
type envelope struct {
	Shows      []json.RawMessage `json:"shows"`
	HasMore    *bool             `json:"hasMore"`
	NextCursor string            `json:"nextCursor"`
}

type rawService struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

type rawSubtitle struct {
	ClosedCaptions bool          `json:"closedCaptions"`
	Locale         record.Locale `json:"locale"`
}

type rawOffer struct {
	Service        *rawService     `json:"service"`
	Type           *string         `json:"type"`
	Link           *string         `json:"link"`
	VideoLink      string          `json:"videoLink"`
	Quality        string          `json:"quality"`
	Audios         []record.Locale `json:"audios"`
	Subtitles      []rawSubtitle   `json:"subtitles"`
	AvailableSince *int64          `json:"availableSince"`
	ExpiresSoon    *bool           `json:"expiresSoon"`
	ExpiresOn      *int64          `json:"expiresOn"`
}

type rawShow struct {
	ID            *string                      `json:"id"`
	IMDBID        string                       `json:"imdbId"`
	TMDBID        string                       `json:"tmdbId"`
	Title         *string                      `json:"title"`
	OriginalTitle string                       `json:"originalTitle"`
	ShowType      *string                      `json:"showType"`
	ReleaseYear   *int                         `json:"releaseYear"`
	FirstAirYear  *int                         `json:"firstAirYear"`
	Streaming     map[string][]json.RawMessage `json:"streamingOptions"`
	ImageSet      map[string]map[string]string `json:"imageSet"`
}

// Page extracts all index records from one raw page payload.
//
// The only error case is a payload whose top-level JSON cannot be decoded;
// everything below that granularity degrades to Skipped entries.
func Page(payload []byte, fetchedAt time.Time, runID string) (*Batch, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode page envelope: %w", err)
	}

	batch := &Batch{}
	for _, raw := range env.Shows {
		extractShow(batch, raw, fetchedAt, runID)
	}
	batch.Offers = dedupeOffers(batch.Offers)
	return batch, nil
}

// extractShow appends one show's title, offers, and assets to the batch.
func extractShow(batch *Batch, raw json.RawMessage, fetchedAt time.Time, runID string) {
	var show rawShow
	if err := json.Unmarshal(raw, &show); err != nil {
		batch.skip("", "show", fmt.Sprintf("decode show: %v", err))
		return
	}
	if show.ID == nil || *show.ID == "" {
		batch.skip("", "show", "missing id")
		return
	}
	id := *show.ID

	if title, reason := mapTitle(id, show, fetchedAt, runID); reason != "" {
		batch.skip(id, "title", reason)
	} else {
		batch.Titles = append(batch.Titles, title)
	}

	// Country keys come from a JSON object; sort them so output order does
	// not depend on map iteration.
	countries := make([]string, 0, len(show.Streaming))
	for c := range show.Streaming {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	for _, country := range countries {
		for _, rawO := range show.Streaming[country] {
			offer, reason := mapOffer(id, country, rawO, fetchedAt, runID)
			if reason != "" {
				batch.skip(id, "offer", reason)
				continue
			}
			batch.Offers = append(batch.Offers, offer)
		}
	}

	kinds := make([]string, 0, len(show.ImageSet))
	for k := range show.ImageSet {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		urls := show.ImageSet[kind]
		if len(urls) == 0 {
			continue
		}
		batch.Assets = append(batch.Assets, record.Asset{
			TitleID:       id,
			Kind:          record.AssetKind(kind),
			ImageURLs:     urls,
			FetchedAt:     fetchedAt,
			LastSeenRunID: runID,
		})
	}
}

// mapTitle builds the title record, or returns a skip reason.
// The provider names the year field inconsistently: series carry
// firstAirYear, movies releaseYear.
func mapTitle(id string, show rawShow, fetchedAt time.Time, runID string) (record.Title, string) {
	if show.Title == nil || *show.Title == "" {
		return record.Title{}, "missing title"
	}
	if show.ShowType == nil || *show.ShowType == "" {
		return record.Title{}, "missing showType"
	}

	year := ""
	switch {
	case show.ReleaseYear != nil:
		year = strconv.Itoa(*show.ReleaseYear)
	case show.FirstAirYear != nil:
		year = strconv.Itoa(*show.FirstAirYear)
	}

	return record.Title{
		ID:            id,
		IMDBID:        show.IMDBID,
		TMDBID:        show.TMDBID,
		Name:          *show.Title,
		OriginalName:  show.OriginalTitle,
		ShowType:      record.ShowType(*show.ShowType),
		ReleaseYear:   year,
		FetchedAt:     fetchedAt,
		LastSeenRunID: runID,
	}, ""
}

// mapOffer builds one offer record, or returns a skip reason.
// Unknown service ids, offer types, and quality tiers pass through as-is.
func mapOffer(titleID, country string, raw json.RawMessage, fetchedAt time.Time, runID string) (record.Offer, string) {
	var o rawOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return record.Offer{}, fmt.Sprintf("decode offer: %v", err)
	}
	switch {
	case o.Service == nil || o.Service.ID == nil || *o.Service.ID == "":
		return record.Offer{}, "missing service.id"
	case o.Type == nil || *o.Type == "":
		return record.Offer{}, "missing type"
	case o.Link == nil || *o.Link == "":
		return record.Offer{}, "missing link"
	case o.AvailableSince == nil:
		return record.Offer{}, "missing availableSince"
	case o.ExpiresSoon == nil:
		return record.Offer{}, "missing expiresSoon"
	}

	audios := make([]record.Locale, 0, len(o.Audios))
	for _, l := range o.Audios {
		audios = append(audios, l.Normalize())
	}
	subtitles := make([]record.Subtitle, 0, len(o.Subtitles))
	for _, s := range o.Subtitles {
		subtitles = append(subtitles, record.Subtitle{
			Locale:         s.Locale.Normalize(),
			ClosedCaptions: s.ClosedCaptions,
		})
	}

	return record.Offer{
		TitleID:        titleID,
		Country:        country,
		ServiceID:      *o.Service.ID,
		ServiceName:    o.Service.Name,
		OfferType:      *o.Type,
		Quality:        o.Quality,
		TitlePageLink:  *o.Link,
		WatchLink:      o.VideoLink,
		Audios:         audios,
		Subtitles:      subtitles,
		AvailableSince: *o.AvailableSince,
		ExpiresSoon:    *o.ExpiresSoon,
		ExpiresOn:      o.ExpiresOn,
		FetchedAt:      fetchedAt,
		LastSeenRunID:  runID,
	}, ""
}

// dedupeOffers collapses offers that share a natural key within one page.
// Preference order: higher quality tier, then having a watch link, then the
// later availableSince. First occurrence position is kept so the output
// order stays deterministic.
func dedupeOffers(offers []record.Offer) []record.Offer {
	if len(offers) < 2 {
		return offers
	}

	pos := make(map[record.OfferKey]int, len(offers))
	out := make([]record.Offer, 0, len(offers))
	for _, o := range offers {
		i, seen := pos[o.Key()]
		if !seen {
			pos[o.Key()] = len(out)
			out = append(out, o)
			continue
		}
		if preferOffer(o, out[i]) {
			out[i] = o
		}
	}
	return out
}

// preferOffer reports whether candidate should replace current.
func preferOffer(candidate, current record.Offer) bool {
	cr, or := record.QualityRank(candidate.Quality), record.QualityRank(current.Quality)
	if cr != or {
		return cr > or
	}
	if (candidate.WatchLink != "") != (current.WatchLink != "") {
		return candidate.WatchLink != ""
	}
	return candidate.AvailableSince > current.AvailableSince
}

func (b *Batch) skip(titleID, kind, reason string) {
	b.Skipped = append(b.Skipped, Skip{TitleID: titleID, Kind: kind, Reason: reason})
}

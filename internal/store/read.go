package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/catchup/internal/record"
)

// RawPages returns a run's archived pages in page order.
// Returns an empty slice (not nil) for a run with no pages.
func (s *Store) RawPages(ctx context.Context, runID string) ([]record.RawPage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, page_number, cursor_used, next_cursor, has_more,
		       item_count, response_blob, response_hash, fetched_at
		FROM raw_pages
		WHERE run_id = ?
		ORDER BY page_number ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query raw pages: %w", err)
	}
	defer rows.Close()

	pages := []record.RawPage{}
	for rows.Next() {
		var p record.RawPage
		err := rows.Scan(
			&p.RunID,
			&p.PageNumber,
			&p.CursorUsed,
			&p.NextCursor,
			&p.HasMore,
			&p.ItemCount,
			&p.Payload,
			&p.Hash,
			&p.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw pages: %w", err)
	}
	return pages, nil
}

// TitlesSeenIn returns all titles whose last observation was the given run,
// ordered by title id.
func (s *Store) TitlesSeenIn(ctx context.Context, runID string) ([]record.Title, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title_id, imdb_id, tmdb_id, title, original_title, show_type,
		       release_year, fetched_at, last_seen_run_id
		FROM titles_index
		WHERE last_seen_run_id = ?
		ORDER BY title_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()
	return collectTitles(rows)
}

// GetTitle loads one title row by its natural key.
func (s *Store) GetTitle(ctx context.Context, titleID string) (record.Title, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT title_id, imdb_id, tmdb_id, title, original_title, show_type,
		       release_year, fetched_at, last_seen_run_id
		FROM titles_index
		WHERE title_id = ?
	`, titleID)

	t, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Title{}, fmt.Errorf("%w: %s", ErrTitleNotFound, titleID)
	}
	if err != nil {
		return record.Title{}, fmt.Errorf("get title: %w", err)
	}
	return t, nil
}

// OffersSeenIn returns all offers whose last observation was the given run.
// Offers absent from this result but present under an earlier run id are
// the churn: observed before, not observed now, never deleted.
func (s *Store) OffersSeenIn(ctx context.Context, runID string) ([]record.Offer, error) {
	return s.queryOffers(ctx, `WHERE last_seen_run_id = ?`, runID)
}

// OffersForTitle returns every offer row for one title, current or stale.
func (s *Store) OffersForTitle(ctx context.Context, titleID string) ([]record.Offer, error) {
	return s.queryOffers(ctx, `WHERE title_id = ?`, titleID)
}

// CurrentOffers returns one title's offers as seen by the given run.
// Pair with LatestCompletedRun to read the current catalog state for a
// scope; rows carrying older run ids are churn, kept but stale.
func (s *Store) CurrentOffers(ctx context.Context, titleID, runID string) ([]record.Offer, error) {
	return s.queryOffers(ctx, `WHERE title_id = ? AND last_seen_run_id = ?`, titleID, runID)
}

func (s *Store) queryOffers(ctx context.Context, where string, args ...any) ([]record.Offer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title_id, country, service_id, offer_type, service_name,
		       quality, title_page_link, watch_link, audios, subtitles,
		       available_since, expires_soon, expires_on, fetched_at,
		       last_seen_run_id
		FROM offers_index
		`+where+`
		ORDER BY title_id ASC, country ASC, service_id ASC, offer_type ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	offers := []record.Offer{}
	for rows.Next() {
		var o record.Offer
		var audios, subtitles string
		var expiresOn sql.NullInt64
		err := rows.Scan(
			&o.TitleID,
			&o.Country,
			&o.ServiceID,
			&o.OfferType,
			&o.ServiceName,
			&o.Quality,
			&o.TitlePageLink,
			&o.WatchLink,
			&audios,
			&subtitles,
			&o.AvailableSince,
			&o.ExpiresSoon,
			&expiresOn,
			&o.FetchedAt,
			&o.LastSeenRunID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		if o.Audios, err = unmarshalAudios(audios); err != nil {
			return nil, fmt.Errorf("offer %v: %w", o.Key(), err)
		}
		if o.Subtitles, err = unmarshalSubtitles(subtitles); err != nil {
			return nil, fmt.Errorf("offer %v: %w", o.Key(), err)
		}
		if expiresOn.Valid {
			v := expiresOn.Int64
			o.ExpiresOn = &v
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return offers, nil
}

// AssetsForTitle returns all asset rows for one title, ordered by kind.
func (s *Store) AssetsForTitle(ctx context.Context, titleID string) ([]record.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title_id, asset_kind, image_urls, fetched_at, last_seen_run_id
		FROM assets_index
		WHERE title_id = ?
		ORDER BY asset_kind ASC
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := []record.Asset{}
	for rows.Next() {
		var a record.Asset
		var kind, urls string
		err := rows.Scan(&a.TitleID, &kind, &urls, &a.FetchedAt, &a.LastSeenRunID)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.Kind = record.AssetKind(kind)
		if a.ImageURLs, err = unmarshalImageURLs(urls); err != nil {
			return nil, fmt.Errorf("asset %v: %w", a.Key(), err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

func collectTitles(rows *sql.Rows) ([]record.Title, error) {
	titles := []record.Title{}
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate titles: %w", err)
	}
	return titles, nil
}

func scanTitle(row scanner) (record.Title, error) {
	var t record.Title
	var showType string
	err := row.Scan(
		&t.ID,
		&t.IMDBID,
		&t.TMDBID,
		&t.Name,
		&t.OriginalName,
		&showType,
		&t.ReleaseYear,
		&t.FetchedAt,
		&t.LastSeenRunID,
	)
	if err != nil {
		return record.Title{}, err
	}
	t.ShowType = record.ShowType(showType)
	return t, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/catchup/internal/record"
)

// upsertBatch applies all three index batches inside the caller's
// transaction. This function owns no transaction boundary of its own;
// CommitPage decides what commits together.
//
// Every upsert matches on the record's natural key, overwrites all non-key
// fields, and stamps last_seen_run_id/fetched_at from the incoming record.
// Applying the same batch twice yields the same rows as applying it once.
func upsertBatch(ctx context.Context, tx *sql.Tx, titles []record.Title, offers []record.Offer, assets []record.Asset) error {
	if err := upsertTitles(ctx, tx, titles); err != nil {
		return err
	}
	if err := upsertOffers(ctx, tx, offers); err != nil {
		return err
	}
	return upsertAssets(ctx, tx, assets)
}

func upsertTitles(ctx context.Context, tx *sql.Tx, titles []record.Title) error {
	if len(titles) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO titles_index
		(title_id, imdb_id, tmdb_id, title, original_title, show_type,
		 release_year, fetched_at, last_seen_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_id) DO UPDATE SET
			imdb_id = excluded.imdb_id,
			tmdb_id = excluded.tmdb_id,
			title = excluded.title,
			original_title = excluded.original_title,
			show_type = excluded.show_type,
			release_year = excluded.release_year,
			fetched_at = excluded.fetched_at,
			last_seen_run_id = excluded.last_seen_run_id
	`)
	if err != nil {
		return fmt.Errorf("upsert titles: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range titles {
		_, err := stmt.ExecContext(ctx,
			t.ID,
			t.IMDBID,
			t.TMDBID,
			t.Name,
			t.OriginalName,
			string(t.ShowType),
			t.ReleaseYear,
			t.FetchedAt,
			t.LastSeenRunID,
		)
		if err != nil {
			return fmt.Errorf("upsert title %s: %w", t.ID, err)
		}
	}
	return nil
}

func upsertOffers(ctx context.Context, tx *sql.Tx, offers []record.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO offers_index
		(title_id, country, service_id, offer_type, service_name, quality,
		 title_page_link, watch_link, audios, subtitles, available_since,
		 expires_soon, expires_on, fetched_at, last_seen_run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title_id, country, service_id, offer_type) DO UPDATE SET
			service_name = excluded.service_name,
			quality = excluded.quality,
			title_page_link = excluded.title_page_link,
			watch_link = excluded.watch_link,
			audios = excluded.audios,
			subtitles = excluded.subtitles,
			available_since = excluded.available_since,
			expires_soon = excluded.expires_soon,
			expires_on = excluded.expires_on,
			fetched_at = excluded.fetched_at,
			last_seen_run_id = excluded.last_seen_run_id
	`)
	if err != nil {
		return fmt.Errorf("upsert offers: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range offers {
		audios, err := marshalAudios(o.Audios)
		if err != nil {
			return fmt.Errorf("upsert offer %v: %w", o.Key(), err)
		}
		subtitles, err := marshalSubtitles(o.Subtitles)
		if err != nil {
			return fmt.Errorf("upsert offer %v: %w", o.Key(), err)
		}

		var expiresOn sql.NullInt64
		if o.ExpiresOn != nil {
			expiresOn = sql.NullInt64{Int64: *o.ExpiresOn, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			o.TitleID,
			o.Country,
			o.ServiceID,
			o.OfferType,
			o.ServiceName,
			o.Quality,
			o.TitlePageLink,
			o.WatchLink,
			audios,
			subtitles,
			o.AvailableSince,
			o.ExpiresSoon,
			expiresOn,
			o.FetchedAt,
			o.LastSeenRunID,
		)
		if err != nil {
			return fmt.Errorf("upsert offer %v: %w", o.Key(), err)
		}
	}
	return nil
}

func upsertAssets(ctx context.Context, tx *sql.Tx, assets []record.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets_index
		(title_id, asset_kind, image_urls, fetched_at, last_seen_run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title_id, asset_kind) DO UPDATE SET
			image_urls = excluded.image_urls,
			fetched_at = excluded.fetched_at,
			last_seen_run_id = excluded.last_seen_run_id
	`)
	if err != nil {
		return fmt.Errorf("upsert assets: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range assets {
		urls, err := marshalImageURLs(a.ImageURLs)
		if err != nil {
			return fmt.Errorf("upsert asset %v: %w", a.Key(), err)
		}
		_, err = stmt.ExecContext(ctx,
			a.TitleID,
			string(a.Kind),
			urls,
			a.FetchedAt,
			a.LastSeenRunID,
		)
		if err != nil {
			return fmt.Errorf("upsert asset %v: %w", a.Key(), err)
		}
	}
	return nil
}

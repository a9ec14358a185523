package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trent/listing-alerts/internal/types"
)

const upsertListingSQL = `
INSERT INTO listings (
	listing_key, external_id, url, title, asking_price, gross_revenue,
	established, cashflow, description, categories, original_category,
	city, state, broker_name, broker_profile_url, broker_phone, scraped_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (listing_key) DO UPDATE SET
	external_id        = EXCLUDED.external_id,
	url                = EXCLUDED.url,
	title              = EXCLUDED.title,
	asking_price       = EXCLUDED.asking_price,
	gross_revenue      = EXCLUDED.gross_revenue,
	established        = EXCLUDED.established,
	cashflow           = EXCLUDED.cashflow,
	description        = EXCLUDED.description,
	categories         = EXCLUDED.categories,
	original_category  = EXCLUDED.original_category,
	city               = EXCLUDED.city,
	state              = EXCLUDED.state,
	broker_name        = EXCLUDED.broker_name,
	broker_profile_url = EXCLUDED.broker_profile_url,
	broker_phone       = EXCLUDED.broker_phone,
	scraped_at         = EXCLUDED.scraped_at
WHERE EXCLUDED.scraped_at >= listings.scraped_at`

// UpsertListings writes records in a single batch, last write wins per
// listing key. A stored row with a newer scraped_at is left untouched.
// Returns the number of rows written.
func (s *Store) UpsertListings(ctx context.Context, records []*types.ListingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		categories, err := json.Marshal(r.Categories)
		if err != nil {
			return 0, fmt.Errorf("failed to encode categories for %s: %w", r.Key(), err)
		}
		batch.Queue(upsertListingSQL,
			r.Key(), r.ExternalID, r.URL, r.Title, r.AskingPrice, r.GrossRevenue,
			r.Established, r.Cashflow, r.Description, categories, r.OriginalCategory,
			r.City, r.State, r.BrokerName, r.BrokerProfileURL, r.BrokerPhone, r.ScrapedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("failed to upsert listing: %w", err)
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// FilterNew returns the candidates not already present in the store,
// matching on external id when the candidate carries one, otherwise on URL.
func (s *Store) FilterNew(ctx context.Context, candidates []types.ListingCandidate) ([]types.ListingCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.ExternalID != "" {
			ids = append(ids, c.ExternalID)
		}
		urls = append(urls, c.URL)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT external_id, url FROM listings
		 WHERE (external_id <> '' AND external_id = ANY($1)) OR url = ANY($2)`,
		ids, urls)
	if err != nil {
		return nil, fmt.Errorf("failed to query known listings: %w", err)
	}
	defer rows.Close()

	knownIDs := make(map[string]struct{})
	knownURLs := make(map[string]struct{})
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("failed to scan known listing: %w", err)
		}
		if id != "" {
			knownIDs[id] = struct{}{}
		}
		knownURLs[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read known listings: %w", err)
	}

	return filterKnown(candidates, knownIDs, knownURLs), nil
}

// filterKnown keeps candidates whose identifying key is absent from the
// known sets. A candidate with an external id is judged by the id alone so
// that URL drift does not resurface an already stored listing.
func filterKnown(candidates []types.ListingCandidate, knownIDs, knownURLs map[string]struct{}) []types.ListingCandidate {
	fresh := make([]types.ListingCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ExternalID != "" {
			if _, ok := knownIDs[c.ExternalID]; ok {
				continue
			}
		} else if _, ok := knownURLs[c.URL]; ok {
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// RecentListings returns the most recently scraped listings, newest first.
func (s *Store) RecentListings(ctx context.Context, limit int) ([]*types.ListingRecord, error) {
	return s.queryListings(ctx,
		`SELECT external_id, url, title, asking_price, gross_revenue, established,
		        cashflow, description, categories, original_category, city, state,
		        broker_name, broker_profile_url, broker_phone, scraped_at
		 FROM listings ORDER BY scraped_at DESC LIMIT $1`, limit)
}

// ListingsScrapedSince returns listings scraped at or after the cutoff,
// newest first. The pipeline uses it to hand the notification engine only
// the batch persisted in the current run.
func (s *Store) ListingsScrapedSince(ctx context.Context, cutoff time.Time) ([]*types.ListingRecord, error) {
	return s.queryListings(ctx,
		`SELECT external_id, url, title, asking_price, gross_revenue, established,
		        cashflow, description, categories, original_category, city, state,
		        broker_name, broker_profile_url, broker_phone, scraped_at
		 FROM listings WHERE scraped_at >= $1 ORDER BY scraped_at DESC`, cutoff)
}

func (s *Store) queryListings(ctx context.Context, sql string, args ...any) ([]*types.ListingRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var records []*types.ListingRecord
	for rows.Next() {
		var r types.ListingRecord
		var categories []byte
		if err := rows.Scan(
			&r.ExternalID, &r.URL, &r.Title, &r.AskingPrice, &r.GrossRevenue,
			&r.Established, &r.Cashflow, &r.Description, &categories,
			&r.OriginalCategory, &r.City, &r.State, &r.BrokerName,
			&r.BrokerProfileURL, &r.BrokerPhone, &r.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		if len(categories) > 0 {
			if err := json.Unmarshal(categories, &r.Categories); err != nil {
				return nil, fmt.Errorf("failed to decode categories for %s: %w", r.Key(), err)
			}
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}
	return records, nil
}

// Stats summarizes the stored inventory.
type Stats struct {
	TotalListings int
	TotalRuns     int
	LastScrapedAt *time.Time
}

// GetStats returns inventory counts and the most recent scrape time.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), max(scraped_at) FROM listings`).
		Scan(&stats.TotalListings, &stats.LastScrapedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM runs`).Scan(&stats.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	return &stats, nil
}

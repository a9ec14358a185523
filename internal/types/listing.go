// Package types defines the data model shared across the pipeline stages.
package types

import "time"

// ListingCandidate is a discovered but not-yet-scraped listing reference.
// Candidates are produced by discovery and consumed, never mutated, by the
// acquisition pool.
type ListingCandidate struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ExternalID   string    `json:"listing_id"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Key returns the identifying key for deduplication: the site-assigned
// external id when present, otherwise the URL.
func (c ListingCandidate) Key() string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	return c.URL
}

// ListingRecord is the fully extracted, enriched form of a listing. It is
// produced once per successful scrape and owned by the store after upsert.
// Money fields keep the site's raw formatting (e.g. "$500,000"); parsing
// happens at match time.
type ListingRecord struct {
	ExternalID       string    `json:"listing_id"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	AskingPrice      string    `json:"asking_price"`
	GrossRevenue     string    `json:"gross_revenue"`
	Established      string    `json:"established"`
	Cashflow         string    `json:"cashflow"`
	Description      string    `json:"description"`
	Categories       []string  `json:"category"`
	OriginalCategory string    `json:"original_category"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	BrokerName       string    `json:"broker_name"`
	BrokerProfileURL string    `json:"broker_profile"`
	BrokerPhone      string    `json:"broker_number"`
	ScrapedAt        time.Time `json:"scraped_date"`
}

// Key returns the upsert key: external id when present, otherwise URL.
func (r *ListingRecord) Key() string {
	if r.ExternalID != "" {
		return r.ExternalID
	}
	return r.URL
}

// Package scrape implements the detail acquisition pipeline: a bounded
// worker pool that drives browser sessions through candidate listing pages
// and extracts structured records from the rendered markup.
package scrape

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/trent/listing-alerts/internal/types"
)

// ContentMarkerSelector matches an element that only appears on a fully
// rendered standard listing page. Its absence means the page either did not
// load or is not a standard listing.
const ContentMarkerSelector = "span.f-l"

// HasBlockSignature reports whether the rendered page carries the site's
// anti-scraping rejection text. Block pages are served with HTTP 200, so
// detection has to inspect content.
func HasBlockSignature(html string) bool {
	return strings.Contains(strings.ToLower(html), "access denied")
}

// HasAuctionMarker reports whether the page is an auction-style listing,
// which legitimately lacks the standard asking-price and location fields.
func HasAuctionMarker(html string) bool {
	return strings.Contains(strings.ToLower(html), "starting bid")
}

// Extraction holds the fields pulled from one rendered listing page, before
// enrichment. RawLocation is the unstructured "City, ST" text; HasPrice
// distinguishes a present asking price from an empty one for the acceptance
// rule.
type Extraction struct {
	Record      types.ListingRecord
	RawLocation string
	HasPrice    bool
}

type jsonLDOfferedBy struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type jsonLDOffers struct {
	Price     json.RawMessage `json:"price"`
	OfferedBy jsonLDOfferedBy `json:"offeredBy"`
}

type jsonLDProduct struct {
	Type        string       `json:"@type"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	ProductID   string       `json:"productId"`
	Offers      jsonLDOffers `json:"offers"`
}

// Extract parses a rendered listing page. Structured metadata comes from the
// embedded JSON-LD Product block; location, broker phone, gross revenue and
// cashflow are only present in the rendered markup and use fixed selector
// rules. Returns an error only when the document cannot be parsed at all;
// missing fields are left empty for the caller's acceptance rule.
func Extract(html string, cand types.ListingCandidate) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	product := findProductJSONLD(doc)

	rec := types.ListingRecord{
		URL:              cand.URL,
		Title:            cand.Title,
		ExternalID:       cand.ExternalID,
		Description:      product.Description,
		OriginalCategory: product.Category,
		Established:      "",
		BrokerProfileURL: product.Offers.OfferedBy.URL,
		BrokerPhone:      firstText(doc, "span.ctc_phone a span"),
		GrossRevenue:     nthText(doc, "p.help span.g4", 2),
		Cashflow:         nthText(doc, "p.help span.g4", 1),
	}
	if product.Name != "" {
		rec.Title = product.Name
	}
	if product.ProductID != "" {
		rec.ExternalID = product.ProductID
	}

	rec.BrokerName = product.Offers.OfferedBy.Name
	if rec.BrokerName == "" {
		rec.BrokerName = firstText(doc, ".broker-card > div")
	}
	rec.BrokerName = strings.TrimSpace(strings.ReplaceAll(rec.BrokerName, "Business Listed By:", ""))

	rec.AskingPrice = rawToString(product.Offers.Price)

	return &Extraction{
		Record:      rec,
		RawLocation: firstText(doc, ContentMarkerSelector),
		HasPrice:    rec.AskingPrice != "",
	}, nil
}

// findProductJSONLD scans the page's ld+json scripts for the Product block.
func findProductJSONLD(doc *goquery.Document) jsonLDProduct {
	var product jsonLDProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		raw = strings.ReplaceAll(raw, "\n", "")
		raw = strings.ReplaceAll(raw, "\t", "")

		var p jsonLDProduct
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return true
		}
		if p.Type != "Product" {
			return true
		}
		product = p
		return false
	})
	return product
}

// firstText returns the trimmed text of the first element matching sel.
func firstText(doc *goquery.Document, sel string) string {
	return strings.TrimSpace(doc.Find(sel).First().Text())
}

// nthText returns the trimmed text of the n-th (zero-based) element matching
// sel. The positional rules for the financial field group (cash flow second,
// gross revenue third) encode the site's current layout; they are documented
// behavior, not something to normalize away.
func nthText(doc *goquery.Document, sel string, n int) string {
	nodes := doc.Find(sel)
	if nodes.Length() <= n {
		return ""
	}
	return strings.TrimSpace(nodes.Eq(n).Text())
}

// rawToString renders a JSON scalar (number or string) as its plain text
// form. The site emits the offer price both ways.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

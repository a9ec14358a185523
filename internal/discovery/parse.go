package discovery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/trent/listing-alerts/internal/types"
)

// Index pages carry a SearchResultsPage JSON-LD block whose "about" array
// holds one ListItem per listing.
type searchResultsPage struct {
	Type  string `json:"@type"`
	About []struct {
		Type string `json:"@type"`
		Item struct {
			Type      string `json:"@type"`
			Name      string `json:"name"`
			URL       string `json:"url"`
			ProductID string `json:"productID"`
		} `json:"item"`
	} `json:"about"`
}

// parseIndexHTML extracts listing candidates from an index page's JSON-LD.
// Returns an error when no results block is present, which usually means a
// block page was served instead of the index.
func parseIndexHTML(html string) ([]types.ListingCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var page *searchResultsPage
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		raw = strings.ReplaceAll(raw, "\n", "")
		raw = strings.ReplaceAll(raw, "\t", "")

		var decoded searchResultsPage
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return true
		}
		if decoded.Type != "SearchResultsPage" {
			return true
		}
		page = &decoded
		return false
	})
	if page == nil {
		return nil, fmt.Errorf("no search results block found")
	}

	now := time.Now().UTC()
	var candidates []types.ListingCandidate
	for _, entry := range page.About {
		item := entry.Item
		if item.Type != "Product" || item.URL == "" {
			continue
		}
		candidates = append(candidates, types.ListingCandidate{
			Title:        item.Name,
			URL:          item.URL,
			ExternalID:   item.ProductID,
			DiscoveredAt: now,
		})
	}
	return candidates, nil
}

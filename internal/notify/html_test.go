package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trent/listing-alerts/internal/types"
)

func TestRenderListingsHTML_Empty(t *testing.T) {
	got := RenderListingsHTML(nil)
	assert.Contains(t, got, "No new listings")
}

func TestRenderListingsHTML_Card(t *testing.T) {
	got := RenderListingsHTML([]*types.ListingRecord{{
		Title:       "Cafe & Bakery",
		URL:         "https://example.com/1",
		AskingPrice: "$450,000",
		Cashflow:    "$120,000",
		City:        "portland",
		State:       "oregon",
		Description: "Great spot.",
	}})

	assert.Contains(t, got, "Cafe &amp; Bakery")
	assert.Contains(t, got, `href="https://example.com/1"`)
	assert.Contains(t, got, "$450,000")
	assert.Contains(t, got, "Portland, Oregon")
	assert.Contains(t, got, "Great spot.")
}

func TestRenderListingsHTML_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := RenderListingsHTML([]*types.ListingRecord{{
		Title:       "Verbose Listing",
		URL:         "https://example.com/2",
		Description: long,
	}})

	assert.Contains(t, got, "...")
	assert.NotContains(t, got, long)
}

func TestFormatLocation(t *testing.T) {
	assert.Equal(t, "Austin, Texas", formatLocation("austin", "texas"))
	assert.Equal(t, "Texas", formatLocation("", "texas"))
	assert.Equal(t, "Austin", formatLocation("austin", ""))
	assert.Empty(t, formatLocation("", ""))
}

package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexPage(ids ...string) string {
	page := `<html><head><script type="application/ld+json">{"@type": "SearchResultsPage", "about": [`
	for i, id := range ids {
		if i > 0 {
			page += ","
		}
		page += fmt.Sprintf(`{"@type": "ListItem", "item": {"@type": "Product", "name": "Listing %s", "url": "https://example.com/listing/%s", "productID": "%s"}}`, id, id, id)
	}
	return page + `]}</script></head><body></body></html>`
}

func TestCollect_WalksPagesAndDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index/1":
			fmt.Fprint(w, indexPage("100", "101"))
		case "/index/2":
			// 101 repeats across pages and must be dropped.
			fmt.Fprint(w, indexPage("101", "102"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	collector := NewCollector(Options{
		BaseURL: server.URL + "/index/%d",
		Pages:   2,
	})
	candidates, err := collector.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 3)
	assert.Equal(t, "100", candidates[0].ExternalID)
	assert.Equal(t, "101", candidates[1].ExternalID)
	assert.Equal(t, "102", candidates[2].ExternalID)
}

func TestCollect_RetriesFailedPage(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, indexPage("100"))
	}))
	defer server.Close()

	collector := NewCollector(Options{
		BaseURL:     server.URL + "/index/%d",
		Pages:       1,
		MaxAttempts: 2,
	})
	candidates, err := collector.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, int32(2), requests.Load())
}

func TestCollect_FailsAfterExhaustedAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	collector := NewCollector(Options{
		BaseURL:     server.URL + "/index/%d",
		Pages:       1,
		MaxAttempts: 2,
	})
	_, err := collector.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index page 1")
}

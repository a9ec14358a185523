// Package discovery collects listing candidates from the marketplace's
// paginated index. Index pages embed their results as JSON-LD, so discovery
// needs only plain HTTP, optionally routed through a proxy identity.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trent/listing-alerts/internal/proxy"
	"github.com/trent/listing-alerts/internal/types"
)

// IdentitySource supplies proxy identities for outbound requests.
type IdentitySource interface {
	RandomIdentity(ctx context.Context) (proxy.Identity, error)
}

// Options configures a Collector.
type Options struct {
	// BaseURL is the index page URL pattern with one %d verb for the page
	// number.
	BaseURL string
	// Pages is how many index pages to walk, starting at 1.
	Pages int
	// UserAgent is sent on every request.
	UserAgent string
	// Identities, when set, routes requests through a fresh proxy identity
	// per page.
	Identities IdentitySource
	// MaxAttempts bounds retries per page. Defaults to 2.
	MaxAttempts int
	Verbose     bool
}

// Collector walks index pages and extracts listing candidates.
type Collector struct {
	opts Options
}

// NewCollector builds a collector. BaseURL and Pages must be set.
func NewCollector(opts Options) *Collector {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	return &Collector{opts: opts}
}

// Collect walks the configured pages and returns the deduplicated
// candidates in page order. A page that fails all attempts aborts the
// collection; partial results are not returned.
func (c *Collector) Collect(ctx context.Context) ([]types.ListingCandidate, error) {
	seen := make(map[string]struct{})
	var candidates []types.ListingCandidate

	for page := 1; page <= c.opts.Pages; page++ {
		pageURL := fmt.Sprintf(c.opts.BaseURL, page)
		html, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch index page %d: %w", page, err)
		}

		found, err := parseIndexHTML(html)
		if err != nil {
			return nil, fmt.Errorf("failed to parse index page %d: %w", page, err)
		}
		c.logf("page %d: %d candidates", page, len(found))

		for _, cand := range found {
			if _, dup := seen[cand.Key()]; dup {
				continue
			}
			seen[cand.Key()] = struct{}{}
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

// fetchPage retrieves one index page, retrying with a fresh proxy identity
// on failure.
func (c *Collector) fetchPage(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
			}
		}

		client, err := c.httpClient(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := fetchOnce(ctx, client, pageURL, c.opts.UserAgent)
		if err != nil {
			c.logf("attempt %d for %s failed: %v", attempt, pageURL, err)
			lastErr = err
			continue
		}
		return body, nil
	}
	return "", lastErr
}

func (c *Collector) httpClient(ctx context.Context) (*http.Client, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	if c.opts.Identities == nil {
		return client, nil
	}

	identity, err := c.opts.Identities.RandomIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire proxy identity: %w", err)
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(identity.URL())}
	return client, nil
}

func fetchOnce(ctx context.Context, client *http.Client, pageURL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Collector) logf(format string, args ...any) {
	if c.opts.Verbose {
		fmt.Printf("[discovery] "+format+"\n", args...)
	}
}

// Package proxy selects rotating egress identities from a Webshare-style
// proxy directory. Every browser session gets a fresh random identity; there
// is no shared cursor across workers.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the proxy directory endpoint.
const DefaultBaseURL = "https://proxy.webshare.io/api/v2"

const (
	maxAttempts = 4
	baseDelay   = time.Second
)

// Identity is one egress endpoint plus its credentials.
type Identity struct {
	Host     string `json:"proxy_address"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Addr returns the host:port form used for browser proxy configuration.
func (id Identity) Addr() string {
	return fmt.Sprintf("%s:%d", id.Host, id.Port)
}

// URL returns the identity as a proxy URL with embedded credentials, for
// plain HTTP clients.
func (id Identity) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(id.Username, id.Password),
		Host:   id.Addr(),
	}
}

// DirectoryError reports a failure to obtain an egress identity from the
// proxy directory after bounded retries.
type DirectoryError struct {
	Message string
	Cause   error
}

func (e *DirectoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy directory error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("proxy directory error: %s", e.Message)
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// Client fetches proxy identities from the directory API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a directory client authenticated with the given API token.
func NewClient(token string) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL creates a client pointed at a non-default endpoint.
// Used by tests.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

type listResponse struct {
	Results []Identity `json:"results"`
}

// RandomIdentity fetches the current valid proxy list and picks one entry at
// random. Retries with exponential backoff; returns a DirectoryError once
// attempts are exhausted.
func (c *Client) RandomIdentity(ctx context.Context) (Identity, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := baseDelay << (attempt - 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Identity{}, &DirectoryError{Message: "cancelled while waiting to retry", Cause: ctx.Err()}
			}
		}

		id, err := c.fetchRandom(ctx)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return Identity{}, &DirectoryError{
		Message: fmt.Sprintf("no identity after %d attempts", maxAttempts),
		Cause:   lastErr,
	}
}

func (c *Client) fetchRandom(ctx context.Context) (Identity, error) {
	endpoint := c.baseURL + "/proxy/list/?mode=direct&page=1&valid=true&page_size=25"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("directory request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read directory response: %w", err)
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return Identity{}, fmt.Errorf("failed to parse directory response: %w", err)
	}
	if len(list.Results) == 0 {
		return Identity{}, fmt.Errorf("directory returned no valid proxies")
	}

	return list.Results[rand.Intn(len(list.Results))], nil
}

// Package mailchimp is a minimal Marketing API v3 client covering the
// operations the notification engine needs: reading audience members,
// managing static segments, and building and sending campaigns.
package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a structured error response from the Marketing API.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailchimp: %d %s: %s", e.Status, e.Title, e.Detail)
}

// Client talks to the Mailchimp Marketing API. The datacenter is derived
// from the API key suffix (the part after the last dash).
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the datacenter encoded in the API key.
func NewClient(apiKey string) *Client {
	dc := "us1"
	if i := strings.LastIndex(apiKey, "-"); i >= 0 && i < len(apiKey)-1 {
		dc = apiKey[i+1:]
	}
	return NewClientWithBaseURL(apiKey, fmt.Sprintf("https://%s.api.mailchimp.com/3.0", dc))
}

// NewClientWithBaseURL builds a client against an explicit API root.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth("anystring", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: resp.Status}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, apiErr)
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Member is an audience member with its merge fields.
type Member struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email_address"`
	Status      string                 `json:"status"`
	MergeFields map[string]interface{} `json:"merge_fields"`
}

// ListMembers pages through every subscribed member of the audience.
func (c *Client) ListMembers(ctx context.Context, listID string) ([]Member, error) {
	const pageSize = 500
	var members []Member
	for offset := 0; ; offset += pageSize {
		var page struct {
			Members    []Member `json:"members"`
			TotalItems int      `json:"total_items"`
		}
		path := fmt.Sprintf("/lists/%s/members?status=subscribed&count=%d&offset=%d", listID, pageSize, offset)
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		members = append(members, page.Members...)
		if len(members) >= page.TotalItems || len(page.Members) == 0 {
			return members, nil
		}
	}
}

// CreateSegment creates a static segment containing the given member emails
// and returns its id.
func (c *Client) CreateSegment(ctx context.Context, listID, name string, emails []string) (int, error) {
	body := map[string]any{
		"name":           name,
		"static_segment": emails,
	}
	var created struct {
		ID int `json:"id"`
	}
	path := fmt.Sprintf("/lists/%s/segments", listID)
	if err := c.do(ctx, http.MethodPost, path, body, &created); err != nil {
		return 0, fmt.Errorf("failed to create segment: %w", err)
	}
	return created.ID, nil
}

// DeleteSegment removes a static segment.
func (c *Client) DeleteSegment(ctx context.Context, listID string, segmentID int) error {
	path := fmt.Sprintf("/lists/%s/segments/%d", listID, segmentID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	return nil
}

// CampaignSettings holds the sender identity and subject for a campaign.
type CampaignSettings struct {
	Subject  string
	FromName string
	ReplyTo  string
}

// CreateCampaign creates a regular campaign targeting a saved segment.
// A non-zero templateID attaches the template at creation.
func (c *Client) CreateCampaign(ctx context.Context, listID string, segmentID int, settings CampaignSettings, templateID int) (string, error) {
	campaignSettings := map[string]any{
		"subject_line": settings.Subject,
		"from_name":    settings.FromName,
		"reply_to":     settings.ReplyTo,
	}
	if templateID != 0 {
		campaignSettings["template_id"] = templateID
	}
	body := map[string]any{
		"type": "regular",
		"recipients": map[string]any{
			"list_id": listID,
			"segment_opts": map[string]any{
				"saved_segment_id": segmentID,
			},
		},
		"settings": campaignSettings,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/campaigns", body, &created); err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	return created.ID, nil
}

// GetCampaignContent returns the rendered HTML of a campaign.
func (c *Client) GetCampaignContent(ctx context.Context, campaignID string) (string, error) {
	var content struct {
		HTML string `json:"html"`
	}
	path := fmt.Sprintf("/campaigns/%s/content", campaignID)
	if err := c.do(ctx, http.MethodGet, path, nil, &content); err != nil {
		return "", fmt.Errorf("failed to get campaign content: %w", err)
	}
	return content.HTML, nil
}

// SetCampaignContent replaces the campaign's HTML body.
func (c *Client) SetCampaignContent(ctx context.Context, campaignID, html string) error {
	body := map[string]any{"html": html}
	path := fmt.Sprintf("/campaigns/%s/content", campaignID)
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("failed to set campaign content: %w", err)
	}
	return nil
}

// SendCampaign triggers delivery of a campaign.
func (c *Client) SendCampaign(ctx context.Context, campaignID string) error {
	path := fmt.Sprintf("/campaigns/%s/actions/send", campaignID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to send campaign: %w", err)
	}
	return nil
}

// DeleteCampaign removes a campaign.
func (c *Client) DeleteCampaign(ctx context.Context, campaignID string) error {
	path := fmt.Sprintf("/campaigns/%s", campaignID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_DatacenterFromKey(t *testing.T) {
	c := NewClient("0123456789abcdef-us21")
	assert.Equal(t, "https://us21.api.mailchimp.com/3.0", c.baseURL)

	// A key without a datacenter suffix falls back to us1.
	c = NewClient("keywithoutsuffix")
	assert.Equal(t, "https://us1.api.mailchimp.com/3.0", c.baseURL)
}

func TestListMembers_PagesThroughAudience(t *testing.T) {
	var authedUser, authedPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authedUser, authedPass, _ = r.BasicAuth()
		assert.Equal(t, "subscribed", r.URL.Query().Get("status"))

		offset := r.URL.Query().Get("offset")
		w.Header().Set("Content-Type", "application/json")
		if offset == "0" {
			fmt.Fprint(w, `{"total_items": 2, "members": [
				{"id": "m1", "email_address": "a@example.com", "status": "subscribed",
				 "merge_fields": {"STATES": "Texas", "DPR_MAX": 500000}}
			]}`)
			return
		}
		fmt.Fprint(w, `{"total_items": 2, "members": [
			{"id": "m2", "email_address": "b@example.com", "status": "subscribed", "merge_fields": {}}
		]}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key-us1", server.URL)
	members, err := client.ListMembers(context.Background(), "list-1")
	require.NoError(t, err)

	assert.Equal(t, "anystring", authedUser)
	assert.Equal(t, "key-us1", authedPass)
	require.Len(t, members, 2)
	assert.Equal(t, "a@example.com", members[0].Email)
	assert.Equal(t, "Texas", members[0].MergeFields["STATES"])
}

func TestSegmentLifecycle(t *testing.T) {
	var createdBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/lists/list-1/segments":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
			fmt.Fprint(w, `{"id": 77}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/lists/list-1/segments/77":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key-us1", server.URL)
	id, err := client.CreateSegment(context.Background(), "list-1", "alerts-group-abc", []string{"a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 77, id)
	assert.Equal(t, "alerts-group-abc", createdBody["name"])
	assert.Equal(t, []any{"a@example.com"}, createdBody["static_segment"])

	require.NoError(t, client.DeleteSegment(context.Background(), "list-1", 77))
}

func TestCreateCampaign_TemplateOnlyWhenGiven(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		fmt.Fprint(w, `{"id": "c1"}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key-us1", server.URL)
	settings := CampaignSettings{Subject: "Hi", FromName: "Alerts", ReplyTo: "r@example.com"}

	_, err := client.CreateCampaign(context.Background(), "list-1", 5, settings, 42)
	require.NoError(t, err)
	_, err = client.CreateCampaign(context.Background(), "list-1", 5, settings, 0)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	withTemplate := bodies[0]["settings"].(map[string]any)
	assert.Equal(t, float64(42), withTemplate["template_id"])
	withoutTemplate := bodies[1]["settings"].(map[string]any)
	assert.NotContains(t, withoutTemplate, "template_id")

	recipients := bodies[0]["recipients"].(map[string]any)
	segmentOpts := recipients["segment_opts"].(map[string]any)
	assert.Equal(t, float64(5), segmentOpts["saved_segment_id"])
}

func TestAPIError_Surfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status": 400, "title": "Invalid Resource", "detail": "segment is empty"}`)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key-us1", server.URL)
	err := client.SendCampaign(context.Background(), "c1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "Invalid Resource", apiErr.Title)
	assert.Contains(t, apiErr.Error(), "segment is empty")
}

func TestCampaignContentRoundTrip(t *testing.T) {
	var stored string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintf(w, `{"html": %q}`, stored)
		case http.MethodPut:
			var body struct {
				HTML string `json:"html"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			stored = body.HTML
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	client := NewClientWithBaseURL("key-us1", server.URL)
	require.NoError(t, client.SetCampaignContent(context.Background(), "c1", "<p>hello</p>"))

	html, err := client.GetCampaignContent(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", html)
}

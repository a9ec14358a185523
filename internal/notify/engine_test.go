package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trent/listing-alerts/internal/mailchimp"
	"github.com/trent/listing-alerts/internal/types"
)

// fakePlatform records the campaign flow and can fail selected operations.
type fakePlatform struct {
	members []mailchimp.Member

	segments        map[int][]string
	nextSegmentID   int
	deletedSegments []int

	campaigns        map[string]string // id -> html content
	campaignTemplate map[string]int    // id -> template id at creation
	nextCampaignID   int
	sent             []string
	deletedCampaigns []string

	failSend bool
}

func newFakePlatform(members ...mailchimp.Member) *fakePlatform {
	return &fakePlatform{
		members:          members,
		segments:         map[int][]string{},
		campaigns:        map[string]string{},
		campaignTemplate: map[string]int{},
	}
}

func (f *fakePlatform) ListMembers(_ context.Context, _ string) ([]mailchimp.Member, error) {
	return f.members, nil
}

func (f *fakePlatform) CreateSegment(_ context.Context, _ string, _ string, emails []string) (int, error) {
	f.nextSegmentID++
	f.segments[f.nextSegmentID] = emails
	return f.nextSegmentID, nil
}

func (f *fakePlatform) DeleteSegment(_ context.Context, _ string, segmentID int) error {
	f.deletedSegments = append(f.deletedSegments, segmentID)
	return nil
}

func (f *fakePlatform) CreateCampaign(_ context.Context, _ string, _ int, _ mailchimp.CampaignSettings, templateID int) (string, error) {
	f.nextCampaignID++
	id := fmt.Sprintf("campaign-%d", f.nextCampaignID)
	f.campaignTemplate[id] = templateID
	if templateID != 0 {
		f.campaigns[id] = "<html>header " + TemplatePlaceholder + " footer</html>"
	}
	return id, nil
}

func (f *fakePlatform) GetCampaignContent(_ context.Context, campaignID string) (string, error) {
	return f.campaigns[campaignID], nil
}

func (f *fakePlatform) SetCampaignContent(_ context.Context, campaignID, html string) error {
	f.campaigns[campaignID] = html
	return nil
}

func (f *fakePlatform) SendCampaign(_ context.Context, campaignID string) error {
	if f.failSend {
		return errors.New("send rejected")
	}
	f.sent = append(f.sent, campaignID)
	return nil
}

func (f *fakePlatform) DeleteCampaign(_ context.Context, campaignID string) error {
	f.deletedCampaigns = append(f.deletedCampaigns, campaignID)
	return nil
}

func member(email string, fields map[string]interface{}) mailchimp.Member {
	return mailchimp.Member{Email: email, Status: "subscribed", MergeFields: fields}
}

func texasListing(id string) *types.ListingRecord {
	return &types.ListingRecord{
		ExternalID:  id,
		URL:         "https://example.com/" + id,
		Title:       "Listing " + id,
		AskingPrice: "$250,000",
		State:       "texas",
	}
}

func engineOpts() Options {
	return Options{
		ListID:     "list-1",
		TemplateID: 42,
		Settings:   mailchimp.CampaignSettings{Subject: "New listings", FromName: "Alerts", ReplyTo: "alerts@example.com"},
	}
}

func TestNotify_OneCampaignPerGroup(t *testing.T) {
	platform := newFakePlatform(
		member("tx1@example.com", map[string]interface{}{"STATES": "Texas"}),
		member("tx2@example.com", map[string]interface{}{"STATES": "texas"}),
		member("none@example.com", map[string]interface{}{"STATES": "alaska"}),
	)
	engine := NewEngine(platform, engineOpts())

	summary, err := engine.Notify(context.Background(), []*types.ListingRecord{texasListing("1")})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Subscribers)
	assert.Equal(t, 2, summary.MatchedSubscribers)
	assert.Equal(t, 1, summary.GroupsCreated)
	assert.Equal(t, 2, summary.EmailsSent)

	// Both texas subscribers land in one segment, one campaign sent.
	require.Len(t, platform.sent, 1)
	assert.Equal(t, []string{"tx1@example.com", "tx2@example.com"}, platform.segments[1])

	// The template draft is deleted and the sent campaign is template-free.
	sentID := platform.sent[0]
	assert.Zero(t, platform.campaignTemplate[sentID])
	assert.Len(t, platform.deletedCampaigns, 1)

	// Rendered content replaced the placeholder.
	content := platform.campaigns[sentID]
	assert.NotContains(t, content, TemplatePlaceholder)
	assert.Contains(t, content, "Listing 1")
	assert.True(t, strings.HasPrefix(content, "<html>header "))
}

func TestNotify_SegmentCleanedUpAfterSend(t *testing.T) {
	platform := newFakePlatform(
		member("tx@example.com", map[string]interface{}{"STATES": "texas"}),
	)
	engine := NewEngine(platform, engineOpts())

	_, err := engine.Notify(context.Background(), []*types.ListingRecord{texasListing("1")})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, platform.deletedSegments)
}

func TestNotify_GroupFailureIsIsolated(t *testing.T) {
	oregon := texasListing("2")
	oregon.State = "oregon"

	platform := newFakePlatform(
		member("a@example.com", map[string]interface{}{"STATES": "texas"}),
		member("b@example.com", map[string]interface{}{"STATES": "oregon"}),
	)
	platform.failSend = true
	engine := NewEngine(platform, engineOpts())

	summary, err := engine.Notify(context.Background(),
		[]*types.ListingRecord{texasListing("1"), oregon})

	// Both groups fail at send; the first error is reported but the summary
	// still reflects what was attempted.
	require.Error(t, err)
	assert.Equal(t, 2, summary.MatchedSubscribers)
	assert.Zero(t, summary.GroupsCreated)
	assert.Zero(t, summary.EmailsSent)
}

func TestNotify_SecondCycleOnlyCampaignsItsOwnBatch(t *testing.T) {
	// The engine's input is the batch persisted by the current cycle. A
	// listing campaigned in an earlier cycle must not reappear in a later
	// cycle's content.
	platform := newFakePlatform(
		member("tx@example.com", map[string]interface{}{"STATES": "texas"}),
	)
	engine := NewEngine(platform, engineOpts())

	old := texasListing("old")
	_, err := engine.Notify(context.Background(), []*types.ListingRecord{old})
	require.NoError(t, err)

	fresh := texasListing("new")
	_, err = engine.Notify(context.Background(), []*types.ListingRecord{fresh})
	require.NoError(t, err)

	require.Len(t, platform.sent, 2)
	secondContent := platform.campaigns[platform.sent[1]]
	assert.Contains(t, secondContent, "Listing new")
	assert.NotContains(t, secondContent, "Listing old")
}

func TestNotify_NoMatchesSendsNothing(t *testing.T) {
	platform := newFakePlatform(
		member("none@example.com", map[string]interface{}{"STATES": "alaska"}),
	)
	engine := NewEngine(platform, engineOpts())

	summary, err := engine.Notify(context.Background(), []*types.ListingRecord{texasListing("1")})
	require.NoError(t, err)
	assert.Zero(t, summary.GroupsCreated)
	assert.Empty(t, platform.sent)
}

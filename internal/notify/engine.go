package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trent/listing-alerts/internal/mailchimp"
	"github.com/trent/listing-alerts/internal/types"
)

// Platform is the campaign platform surface the engine depends on.
// *mailchimp.Client satisfies it.
type Platform interface {
	ListMembers(ctx context.Context, listID string) ([]mailchimp.Member, error)
	CreateSegment(ctx context.Context, listID, name string, emails []string) (int, error)
	DeleteSegment(ctx context.Context, listID string, segmentID int) error
	CreateCampaign(ctx context.Context, listID string, segmentID int, settings mailchimp.CampaignSettings, templateID int) (string, error)
	GetCampaignContent(ctx context.Context, campaignID string) (string, error)
	SetCampaignContent(ctx context.Context, campaignID, html string) error
	SendCampaign(ctx context.Context, campaignID string) error
	DeleteCampaign(ctx context.Context, campaignID string) error
}

// Options configures a notification pass.
type Options struct {
	ListID     string
	TemplateID int
	Settings   mailchimp.CampaignSettings
	Verbose    bool
}

// Summary reports what a notification pass accomplished.
type Summary struct {
	Subscribers        int
	MatchedSubscribers int
	GroupsCreated      int
	EmailsSent         int
}

// Engine runs the match-group-send flow against a campaign platform.
type Engine struct {
	platform Platform
	opts     Options
}

// NewEngine builds an engine for the given platform and options.
func NewEngine(platform Platform, opts Options) *Engine {
	return &Engine{platform: platform, opts: opts}
}

// Notify matches listings against every subscriber, groups subscribers by
// identical match sets, and sends one campaign per group. A failure in one
// group does not stop the others; the first error is returned alongside the
// summary of what did go out.
func (e *Engine) Notify(ctx context.Context, listings []*types.ListingRecord) (*Summary, error) {
	members, err := e.platform.ListMembers(ctx, e.opts.ListID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscribers: %w", err)
	}

	subs := make([]types.SubscriberProfile, 0, len(members))
	for _, m := range members {
		subs = append(subs, ParseSubscriber(m))
	}

	matched := MatchSubscribers(subs, listings)
	groups := GroupByMatches(matched)

	summary := &Summary{
		Subscribers:        len(subs),
		MatchedSubscribers: len(matched),
	}

	var firstErr error
	for _, group := range groups {
		e.logf("sending group %s to %d subscribers (%d listings)", group.Key, len(group.Emails), len(group.Listings))
		if err := e.sendGroup(ctx, group); err != nil {
			e.logf("group %s failed: %v", group.Key, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("group %s: %w", group.Key, err)
			}
			continue
		}
		summary.GroupsCreated++
		summary.EmailsSent += len(group.Emails)
	}
	return summary, firstErr
}

// sendGroup delivers one campaign to one match group. The platform only
// renders a template when the campaign is created with it, so the flow is:
// create a throwaway campaign with the template, read its rendered HTML,
// substitute the listings block, then recreate the campaign with the final
// HTML and send it.
func (e *Engine) sendGroup(ctx context.Context, group MatchGroup) error {
	segmentName := fmt.Sprintf("alerts-group-%s-%s", group.Key, uuid.NewString()[:8])
	segmentID, err := e.platform.CreateSegment(ctx, e.opts.ListID, segmentName, group.Emails)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	defer func() {
		if err := e.platform.DeleteSegment(context.WithoutCancel(ctx), e.opts.ListID, segmentID); err != nil {
			e.logf("segment %d cleanup failed: %v", segmentID, err)
		}
	}()

	draftID, err := e.platform.CreateCampaign(ctx, e.opts.ListID, segmentID, e.opts.Settings, e.opts.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to create template draft: %w", err)
	}

	templateHTML, err := e.platform.GetCampaignContent(ctx, draftID)
	if err != nil {
		_ = e.platform.DeleteCampaign(ctx, draftID)
		return fmt.Errorf("failed to read template content: %w", err)
	}
	if err := e.platform.DeleteCampaign(ctx, draftID); err != nil {
		return fmt.Errorf("failed to delete template draft: %w", err)
	}

	finalHTML := strings.Replace(templateHTML, TemplatePlaceholder, RenderListingsHTML(group.Listings), 1)

	campaignID, err := e.platform.CreateCampaign(ctx, e.opts.ListID, segmentID, e.opts.Settings, 0)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	if err := e.platform.SetCampaignContent(ctx, campaignID, finalHTML); err != nil {
		_ = e.platform.DeleteCampaign(ctx, campaignID)
		return fmt.Errorf("failed to set campaign content: %w", err)
	}
	if err := e.platform.SendCampaign(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to send campaign: %w", err)
	}
	return nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.opts.Verbose {
		fmt.Printf("[notify] "+format+"\n", args...)
	}
}

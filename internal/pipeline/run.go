// Package pipeline provides the high-level orchestration for one alert
// cycle: discover candidates, filter out known listings, scrape and enrich
// the fresh ones, persist them, and notify matching subscribers.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trent/listing-alerts/internal/config"
	"github.com/trent/listing-alerts/internal/discovery"
	"github.com/trent/listing-alerts/internal/enrich"
	"github.com/trent/listing-alerts/internal/llm"
	"github.com/trent/listing-alerts/internal/mailchimp"
	"github.com/trent/listing-alerts/internal/notify"
	"github.com/trent/listing-alerts/internal/proxy"
	"github.com/trent/listing-alerts/internal/scrape"
	"github.com/trent/listing-alerts/internal/session"
	"github.com/trent/listing-alerts/internal/store"
	"github.com/trent/listing-alerts/internal/types"
)

// Summary reports what one pipeline run accomplished, per stage.
type Summary struct {
	RunID              uuid.UUID
	Discovered         int
	Fresh              int
	Scraped            int
	Failed             int
	Upserted           int
	Subscribers        int
	MatchedSubscribers int
	GroupsCreated      int
	EmailsSent         int
}

// Run executes one full alert cycle with the given configuration. Scrape
// failures for individual candidates are tolerated; persistence and
// notification errors are fatal for the run.
func Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	runID, err := db.CreateRun(ctx)
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunID: runID}
	runStart := time.Now().UTC()

	// Run rows are completed best-effort; a bookkeeping failure never masks
	// the pipeline's own error.
	status := "failed"
	defer func() {
		if err := db.CompleteRun(context.WithoutCancel(ctx), runID, status, summary.runCounts()); err != nil {
			fmt.Printf("Warning: failed to record run completion: %v\n", err)
		}
	}()

	var identities *proxy.Client
	if cfg.WebshareToken != "" {
		identities = proxy.NewClient(cfg.WebshareToken)
	}

	// Step 1: Discover candidates from the index pages.
	fmt.Printf("Step 1/5: Discovering listings (%d pages)...\n", cfg.Pages)
	collector := discovery.NewCollector(discovery.Options{
		BaseURL:    cfg.IndexURL,
		Pages:      cfg.Pages,
		Identities: identitySource(identities),
		Verbose:    cfg.Verbose,
	})
	candidates, err := collector.Collect(ctx)
	if err != nil {
		return summary, fmt.Errorf("discovery failed: %w", err)
	}
	summary.Discovered = len(candidates)

	// Step 2: Keep only listings not already in the store.
	fmt.Printf("Step 2/5: Filtering %d candidates against the store...\n", len(candidates))
	fresh, err := db.FilterNew(ctx, candidates)
	if err != nil {
		return summary, fmt.Errorf("freshness filter failed: %w", err)
	}
	summary.Fresh = len(fresh)
	fmt.Printf("  %d new listings to scrape\n", len(fresh))

	// Step 3: Scrape and enrich the fresh candidates.
	if len(fresh) > 0 {
		if identities == nil {
			return summary, fmt.Errorf("scraping requires a proxy directory token")
		}

		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			return summary, fmt.Errorf("enrichment client failed: %w", err)
		}
		defer gemini.Close()

		fmt.Printf("Step 3/5: Scraping %d listings (%d workers)...\n", len(fresh), cfg.Workers)
		pool := scrape.NewPool(
			&managerSource{manager: session.NewManager(identities, !cfg.Headful)},
			enrich.NewClient(gemini, cfg.Verbose),
			scrape.Options{
				Workers:     cfg.Workers,
				MaxAttempts: cfg.MaxAttempts,
				Verbose:     cfg.Verbose,
			},
		)
		result, err := pool.Run(ctx, fresh)
		if err != nil {
			return summary, fmt.Errorf("scraping failed: %w", err)
		}
		summary.Scraped = len(result.Records)
		summary.Failed = result.Failed

		// Step 4: Persist what was scraped.
		fmt.Printf("Step 4/5: Persisting %d records...\n", len(result.Records))
		written, err := db.UpsertListings(ctx, result.Records)
		if err != nil {
			return summary, fmt.Errorf("persistence failed: %w", err)
		}
		summary.Upserted = written
	} else {
		fmt.Printf("Step 3/5: Nothing to scrape, skipping\n")
		fmt.Printf("Step 4/5: Nothing to persist, skipping\n")
	}

	// Step 5: Notify subscribers about the listings persisted this run.
	// Only the fresh batch goes to the engine; anything older has already
	// been campaigned by the run that stored it.
	fmt.Printf("Step 5/5: Notifying subscribers...\n")
	var batch []*types.ListingRecord
	if summary.Upserted > 0 {
		batch, err = db.ListingsScrapedSince(ctx, runStart)
		if err != nil {
			return summary, fmt.Errorf("fresh batch load failed: %w", err)
		}
	}

	engine := notify.NewEngine(mailchimp.NewClient(cfg.MailchimpAPIKey), notify.Options{
		ListID:     cfg.MailchimpListID,
		TemplateID: cfg.MailchimpTemplateID,
		Settings: mailchimp.CampaignSettings{
			Subject:  cfg.CampaignSubject,
			FromName: cfg.CampaignFromName,
			ReplyTo:  cfg.CampaignReplyTo,
		},
		Verbose: cfg.Verbose,
	})
	notifySummary, err := engine.Notify(ctx, batch)
	if notifySummary != nil {
		summary.Subscribers = notifySummary.Subscribers
		summary.MatchedSubscribers = notifySummary.MatchedSubscribers
		summary.GroupsCreated = notifySummary.GroupsCreated
		summary.EmailsSent = notifySummary.EmailsSent
	}
	if err != nil {
		return summary, fmt.Errorf("notification failed: %w", err)
	}

	status = "completed"
	return summary, nil
}

func (s *Summary) runCounts() store.RunCounts {
	return store.RunCounts{
		Discovered:         s.Discovered,
		Fresh:              s.Fresh,
		Scraped:            s.Scraped,
		Failed:             s.Failed,
		Upserted:           s.Upserted,
		MatchedSubscribers: s.MatchedSubscribers,
		EmailsSent:         s.EmailsSent,
		GroupsCreated:      s.GroupsCreated,
	}
}

// identitySource returns nil when no client is configured so discovery runs
// direct. A typed nil inside the interface would defeat the nil check.
func identitySource(c *proxy.Client) discovery.IdentitySource {
	if c == nil {
		return nil
	}
	return c
}

// managerSource adapts *session.Manager to the pool's SessionSource, which
// traffics in the BrowserSession interface rather than the concrete type.
type managerSource struct {
	manager *session.Manager
}

func (m *managerSource) Acquire(ctx context.Context) (scrape.BrowserSession, error) {
	return m.manager.Acquire(ctx)
}

func (m *managerSource) Reset(ctx context.Context, s scrape.BrowserSession) (scrape.BrowserSession, error) {
	var current *session.Session
	if s != nil {
		current, _ = s.(*session.Session)
	}
	return m.manager.Reset(ctx, current)
}

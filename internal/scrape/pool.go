package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trent/listing-alerts/internal/types"
)

// ErrUnextractable marks a candidate dropped after exhausting its attempts.
// It is not retried again in this run.
var ErrUnextractable = errors.New("listing unextractable")

// BrowserSession is the slice of session behavior the pool needs. Satisfied
// by *session.Session.
type BrowserSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Close()
}

// SessionSource acquires and replaces browser sessions.
type SessionSource interface {
	Acquire(ctx context.Context) (BrowserSession, error)
	Reset(ctx context.Context, s BrowserSession) (BrowserSession, error)
}

// Enricher normalizes free-text fields after a successful extraction. It
// never fails: classification errors degrade to raw passthrough inside the
// implementation.
type Enricher interface {
	Categorize(ctx context.Context, rawCategory string) []string
	SplitLocation(ctx context.Context, rawLocation string) (city, state string)
}

// Options tunes the acquisition pool.
type Options struct {
	// Workers is the number of concurrent sessions. Defaults to 1: each
	// session is a full browser process.
	Workers int
	// MaxAttempts bounds the per-candidate retry state machine.
	MaxAttempts int
	// AttemptTimeout bounds a single page navigation.
	AttemptTimeout time.Duration
	// MarkerTimeout bounds the wait for the content marker after navigation.
	MarkerTimeout time.Duration
	// CandidateBudget caps one candidate's total wall-clock time across all
	// of its attempts.
	CandidateBudget time.Duration
	// Verbose enables per-candidate progress output.
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 2
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 60 * time.Second
	}
	if o.MarkerTimeout <= 0 {
		o.MarkerTimeout = 15 * time.Second
	}
	if o.CandidateBudget <= 0 {
		o.CandidateBudget = 3 * time.Minute
	}
	return o
}

// Result aggregates one pool run. Records are in completion order, not
// submission order.
type Result struct {
	Records []*types.ListingRecord
	Failed  int
}

// Pool drives candidate acquisition with bounded concurrency. Workers share
// nothing but the candidate queue and the collected results; each worker
// exclusively owns one session at a time.
type Pool struct {
	sessions SessionSource
	enricher Enricher
	opts     Options
}

// NewPool creates an acquisition pool.
func NewPool(sessions SessionSource, enricher Enricher, opts Options) *Pool {
	return &Pool{sessions: sessions, enricher: enricher, opts: opts.withDefaults()}
}

// Run processes every candidate and returns the extracted records plus the
// count of candidates dropped as unextractable. It returns an error only on
// unrecoverable failures (a session that cannot be created at all), in which
// case remaining candidates are abandoned.
func (p *Pool) Run(ctx context.Context, candidates []types.ListingCandidate) (*Result, error) {
	jobs := make(chan types.ListingCandidate, len(candidates))
	for _, c := range candidates {
		jobs <- c
	}
	close(jobs)

	var (
		mu     sync.Mutex
		result Result
	)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			var sess BrowserSession
			defer func() {
				if sess != nil {
					sess.Close()
				}
			}()

			for cand := range jobs {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				if sess == nil {
					var err error
					sess, err = p.sessions.Acquire(gCtx)
					if err != nil {
						return fmt.Errorf("worker could not start a session: %w", err)
					}
				}

				candCtx, cancel := context.WithTimeout(gCtx, p.opts.CandidateBudget)
				rec, next, err := p.process(candCtx, sess, cand)
				cancel()
				sess = next

				switch {
				case err == nil:
					mu.Lock()
					result.Records = append(result.Records, rec)
					mu.Unlock()
					if p.opts.Verbose {
						fmt.Printf("[scrape] extracted: %s\n", truncate(rec.Title, 50))
					}
				case errors.Is(err, ErrUnextractable):
					mu.Lock()
					result.Failed++
					mu.Unlock()
					fmt.Printf("[scrape] dropped %s: %v\n", cand.URL, err)
				default:
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}

// process runs the per-candidate state machine. It returns the record on
// success, an ErrUnextractable-wrapped error when attempts are exhausted,
// and any other error for unrecoverable session failures. The returned
// session replaces the caller's: resets performed here hand a fresh session
// back for the next candidate.
func (p *Pool) process(ctx context.Context, sess BrowserSession, cand types.ListingCandidate) (*types.ListingRecord, BrowserSession, error) {
	var lastErr error

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, sess, fmt.Errorf("%w: candidate budget exhausted: %v", ErrUnextractable, ctx.Err())
		}

		rec, err := p.attempt(ctx, sess, cand)
		if err == nil {
			return rec, sess, nil
		}
		lastErr = err

		// Any failed attempt invalidates the session: blocks, timeouts and
		// shape mismatches all suggest the egress identity is burned.
		next, resetErr := p.sessions.Reset(ctx, sess)
		if resetErr != nil {
			return nil, nil, fmt.Errorf("session reset failed: %w", resetErr)
		}
		sess = next
	}

	return nil, sess, fmt.Errorf("%w after %d attempts: %v", ErrUnextractable, p.opts.MaxAttempts, lastErr)
}

// attempt executes one navigate-check-extract cycle against the current
// session. Every error return counts as one failed attempt.
func (p *Pool) attempt(ctx context.Context, sess BrowserSession, cand types.ListingCandidate) (*types.ListingRecord, error) {
	if err := sess.Navigate(ctx, cand.URL, p.opts.AttemptTimeout); err != nil {
		return nil, err
	}

	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if HasBlockSignature(html) {
		return nil, fmt.Errorf("block signature on %s", cand.URL)
	}

	auction := false
	if err := sess.WaitVisible(ctx, ContentMarkerSelector, p.opts.MarkerTimeout); err != nil {
		// The marker never rendered. Auction listings are the one known
		// page type without it; anything else is a failed load.
		html, herr := sess.HTML(ctx)
		if herr != nil {
			return nil, herr
		}
		if !HasAuctionMarker(html) {
			return nil, fmt.Errorf("content marker missing on %s: %w", cand.URL, err)
		}
		auction = true
	}

	html, err = sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if !auction {
		auction = HasAuctionMarker(html)
	}

	ext, err := Extract(html, cand)
	if err != nil {
		return nil, err
	}

	// Acceptance rule: price and location must both be present, except for
	// auction listings, whose partial records are knowingly returned.
	if !auction && (!ext.HasPrice || ext.RawLocation == "") {
		return nil, fmt.Errorf("required fields missing on %s (price=%t location=%q)",
			cand.URL, ext.HasPrice, ext.RawLocation)
	}

	rec := ext.Record
	rec.Categories = p.enricher.Categorize(ctx, rec.OriginalCategory)
	rec.City, rec.State = p.enricher.SplitLocation(ctx, ext.RawLocation)
	rec.ScrapedAt = time.Now().UTC()

	return &rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

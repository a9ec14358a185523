// Package session manages proxied headless-browser sessions for detail
// acquisition. A session binds one browser process to one egress identity;
// it is owned by a single worker and replaced, never repaired, on failure.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/trent/listing-alerts/internal/proxy"
)

// Session is a ready-to-use browser bound to a single egress identity.
type Session struct {
	Identity  proxy.Identity
	UserAgent string

	browserCtx context.Context
	cancels    []context.CancelFunc
}

// Navigate loads the given URL and waits for the document body to be ready.
// Readiness says nothing about whether the site served real content; callers
// must inspect the rendered DOM for block and content markers.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	tctx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element or the
// timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	tctx, cancel := s.boundedCtx(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %q failed: %w", sel, err)
	}
	return nil
}

// HTML returns the current rendered document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	tctx, cancel := s.boundedCtx(ctx, 15*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("reading rendered document failed: %w", err)
	}
	return html, nil
}

// Close tears the browser process down. Best effort; close errors are
// ignored because the session is discarded either way.
func (s *Session) Close() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
}

// boundedCtx derives a timeout context from the browser context that is also
// cancelled when the caller's context ends.
func (s *Session) boundedCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

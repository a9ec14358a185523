package session

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	"github.com/trent/listing-alerts/internal/proxy"
)

// IdentitySource supplies egress identities for new sessions.
type IdentitySource interface {
	RandomIdentity(ctx context.Context) (proxy.Identity, error)
}

// userAgents is the rotation pool for new sessions. Current desktop Chrome
// and Firefox strings; the exact set only needs to look unremarkable.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// CreationError reports that a browser session could not be started, either
// because no egress identity was available or the browser process failed.
type CreationError struct {
	Message string
	Cause   error
}

func (e *CreationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session creation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("session creation error: %s", e.Message)
}

func (e *CreationError) Unwrap() error {
	return e.Cause
}

// Manager produces and replaces browser sessions. Session creation is the
// most expensive operation in the pipeline; callers reset only on
// demonstrated failure, never speculatively.
type Manager struct {
	identities IdentitySource
	headless   bool
}

// NewManager creates a session manager drawing identities from the given
// source. Headless false runs a visible browser, for local debugging.
func NewManager(identities IdentitySource, headless bool) *Manager {
	return &Manager{identities: identities, headless: headless}
}

// Acquire fetches a fresh egress identity and starts a browser session
// configured with it, a randomized user agent, and anti-automation-detection
// flags.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	identity, err := m.identities.RandomIdentity(ctx)
	if err != nil {
		return nil, &CreationError{Message: "no egress identity available", Cause: err}
	}

	ua := userAgents[rand.Intn(len(userAgents))]

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("incognito", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
		chromedp.ProxyServer(identity.Addr()),
	)

	// The allocator must outlive the calling context: a session's lifetime
	// spans every candidate its worker processes.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &Session{
		Identity:   identity,
		UserAgent:  ua,
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{cancelAlloc, cancelBrowser},
	}

	// The egress proxy requires basic auth, which Chrome cannot take from a
	// command-line flag. Answer auth challenges through the CDP fetch domain.
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				execCtx := cdp.WithExecutor(browserCtx, chromedp.FromContext(browserCtx).Target)
				_ = fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: identity.Username,
					Password: identity.Password,
				}).Do(execCtx)
			}()
		case *fetch.EventRequestPaused:
			go func() {
				execCtx := cdp.WithExecutor(browserCtx, chromedp.FromContext(browserCtx).Target)
				_ = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
			}()
		}
	})

	// Starts the browser process and enables auth interception.
	if err := chromedp.Run(browserCtx, fetch.Enable().WithHandleAuthRequests(true)); err != nil {
		s.Close()
		return nil, &CreationError{Message: "browser process failed to start", Cause: err}
	}

	return s, nil
}

// Reset tears down the given session and acquires a replacement with a newly
// selected egress identity. Close errors are ignored.
func (m *Manager) Reset(ctx context.Context, s *Session) (*Session, error) {
	if s != nil {
		s.Close()
	}
	return m.Acquire(ctx)
}

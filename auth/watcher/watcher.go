// Package watcher drives the interactive login flow: it opens a browsing
// surface at the portal's welcome page and polls it until a valid session
// cookie appears, then normalizes and persists the credential. The poll loop
// runs detached from the command that started it.
package watcher

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// welcomeMarker is the fragment the portal lands on once the user has
// authenticated. The surface address must contain it before cookies are
// trusted; anything earlier is the portal's own login-redirect chain.
const welcomeMarker = "#?page=/welcome"

const (
	defaultInterval    = time.Second
	defaultMaxAttempts = 1800 // ~30 minutes of polling
	defaultGraceTicks  = 5
)

// Cookie is a cookie as observed on a browsing surface. A zero Expires means
// the surface reported no expiry, which is treated as not-yet-valid.
type Cookie struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Expires time.Time
}

// Surface is the minimal view of an embedded browser window the watcher
// needs: its current address, its cookie jar and a way to close it.
type Surface interface {
	CurrentURL() (string, error)
	Cookies() ([]Cookie, error)
	Close() error
}

// Launcher opens a browsing surface at a URL.
type Launcher interface {
	Open(url string) (Surface, error)
}

// Outcome is the terminal state of one login attempt.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeFailed   Outcome = "failed"
)

// Result reports how a detached login attempt ended.
type Result struct {
	AttemptID string
	Outcome   Outcome
}

// Watcher owns the polling state machine. The clock and attempt bounds are
// injectable so tests can run tick-by-tick without real timers.
type Watcher struct {
	launcher    Launcher
	store       session.Store
	interval    time.Duration
	maxAttempts int
	graceTicks  int
	nowTime     func() time.Time
	onResult    func(Result)
	logger      zerolog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithMaxAttempts bounds the number of poll ticks.
func WithMaxAttempts(n int) Option {
	return func(w *Watcher) { w.maxAttempts = n }
}

// WithGraceTicks sets how many initial ticks skip inspection entirely.
func WithGraceTicks(n int) Option {
	return func(w *Watcher) { w.graceTicks = n }
}

// WithNowTime sets the clock used for cookie-expiry checks (for testing).
func WithNowTime(now func() time.Time) Option {
	return func(w *Watcher) { w.nowTime = now }
}

// WithOnResult registers a callback fired exactly once per attempt with its
// terminal outcome.
func WithOnResult(fn func(Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New creates a Watcher persisting found sessions into store.
func New(launcher Launcher, store session.Store, options ...Option) *Watcher {
	w := &Watcher{
		launcher:    launcher,
		store:       store,
		interval:    defaultInterval,
		maxAttempts: defaultMaxAttempts,
		graceTicks:  defaultGraceTicks,
		nowTime:     time.Now,
		onResult:    func(Result) {},
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Start opens the login surface and begins polling in a background
// goroutine. It returns as soon as the surface is open; polling outcomes are
// delivered through the OnResult callback. Cancelling ctx stops the attempt
// and closes the surface.
func (w *Watcher) Start(ctx context.Context, rawURL string) (string, error) {
	httpURL := rawURL
	if !strings.HasPrefix(httpURL, "https://") {
		httpURL = "https://" + httpURL
	}
	parsed, err := url.Parse(httpURL)
	if err != nil {
		return "", errors.Wrapf(err, "[Watcher.Start] invalid URL %q", rawURL)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", errors.Errorf("[Watcher.Start] URL %q has no host", rawURL)
	}

	surface, err := w.launcher.Open(httpURL + "/" + welcomeMarker)
	if err != nil {
		return "", errors.Wrap(err, "[Watcher.Start] open login surface")
	}

	attemptID := uuid.New().String()
	go w.run(ctx, attemptID, surface, host, httpURL)
	return attemptID, nil
}

func (w *Watcher) run(ctx context.Context, attemptID string, surface Surface, host, httpURL string) {
	logger := w.logger.With().Str("attempt", attemptID).Logger()

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			surface.Close()
			logger.Info().Msg("login attempt cancelled")
			w.onResult(Result{AttemptID: attemptID, Outcome: OutcomeFailed})
			return
		case <-time.After(w.interval):
		}

		// Leave the portal's own redirect chain alone for the first few
		// ticks before looking at anything.
		if attempt < w.graceTicks {
			continue
		}

		address, err := surface.CurrentURL()
		if err != nil {
			continue
		}
		if !strings.Contains(address, welcomeMarker) {
			continue
		}

		cookies, err := surface.Cookies()
		if err != nil {
			continue
		}

		candidate, ok := findSessionCookie(cookies, host, w.nowTime())
		if !ok {
			continue
		}

		sess := session.Session{
			BaseURL:           httpURL,
			JSessionID:        candidate.Value,
			AdditionalCookies: collectAdditional(cookies, host),
		}
		if err := w.store.Save(sess); err != nil {
			logger.Error().Err(err).Msg("failed to save harvested session")
			surface.Close()
			w.onResult(Result{AttemptID: attemptID, Outcome: OutcomeFailed})
			return
		}

		surface.Close()
		logger.Info().Str("host", host).Msg("login session harvested")
		w.onResult(Result{AttemptID: attemptID, Outcome: OutcomeFound})
		return
	}

	surface.Close()
	logger.Warn().Str("host", host).Msg("session cookie not found within timeout")
	w.onResult(Result{AttemptID: attemptID, Outcome: OutcomeTimedOut})
}

// findSessionCookie picks the JSESSIONID cookie scoped to the launch host
// with a strictly-future expiry. An expired or same-instant cookie is
// not-yet-present, prompting continued polling.
func findSessionCookie(cookies []Cookie, host string, now time.Time) (Cookie, bool) {
	for _, c := range cookies {
		if c.Name != session.SessionCookieName {
			continue
		}
		if !domainMatches(host, c.Domain) {
			continue
		}
		if !c.Expires.After(now) {
			continue
		}
		return c, true
	}
	return Cookie{}, false
}

// collectAdditional keeps every non-JSESSIONID cookie whose domain is a
// registrable suffix of the launch host.
func collectAdditional(cookies []Cookie, host string) []session.Cookie {
	var additional []session.Cookie
	for _, c := range cookies {
		if c.Name == session.SessionCookieName {
			continue
		}
		if !domainMatches(host, c.Domain) {
			continue
		}
		additional = append(additional, session.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return additional
}

// domainMatches reports whether host falls under the cookie domain after
// stripping a leading dot: exact match or dot-boundary suffix.
func domainMatches(host, domain string) bool {
	if domain == "" {
		return false
	}
	domain = strings.TrimPrefix(domain, ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Package handshake replays the multi-step login choreography the SEQTA web
// client performs invisibly inside the browser. No single portal endpoint
// issues a session from a bare JWT; the only way to materialize one without
// a real browser is to run the same five requests in the same order.
package handshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ar-cyber/TauriSEQTA/auth/deeplink"
	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Step identifies one request of the login sequence, for error reporting.
type Step string

const (
	StepLogin     Step = "login"
	StepJWTLogin  Step = "jwt login"
	StepRecover   Step = "recover"
	StepHeartbeat Step = "heartbeat"
	StepProfile   Step = "load profile"
)

const (
	loginPath     = "/seqta/student/login"
	recoverPath   = "/seqta/student/recover"
	heartbeatPath = "/seqta/student/heartbeat"
	profilePath   = "/seqta/student/load/profile"

	defaultTimeout = 30 * time.Second
)

// Error reports which step of the sequence failed and why. Status is zero
// for transport-level failures.
type Error struct {
	Step   Step
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed with status %d", e.Step, e.Status)
	}
	return fmt.Sprintf("%s request failed: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// appLinkResponse is the load-profile payload carrying the second-generation
// deep link with the rotated session token.
type appLinkResponse struct {
	Payload struct {
		AppLink          string `json:"app_link"`
		PasswordEditable bool   `json:"password_editable"`
	} `json:"payload"`
	Status string `json:"status"`
}

// Client performs the QR/SSO handshake against a portal.
type Client struct {
	profile   Profile
	transport http.RoundTripper
	timeout   time.Duration
	logger    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the HTTP transport (primarily for testing).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a handshake client for the given portal profile.
func New(profile Profile, options ...Option) *Client {
	c := &Client{
		profile:   profile,
		transport: http.DefaultTransport,
		timeout:   defaultTimeout,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Perform runs the five-step login sequence for a validated SSO payload and
// returns the resulting session. The sequence is strictly ordered and
// short-circuits on the first failure; a cookie jar is shared across all
// steps so portal-set cookies propagate between them.
func (c *Client) Perform(ctx context.Context, payload *deeplink.Payload) (session.Session, error) {
	baseURL := strings.TrimRight(payload.ServerURL, "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return session.Session{}, errors.Wrapf(deeplink.ErrBadFormat, "invalid server URL %q", payload.ServerURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "[handshake.Perform] create cookie jar")
	}
	if c.profile.SeedSessionCookie {
		// The portal's own client presents the JWT as a JSESSIONID cookie
		// from the very first request.
		jar.SetCookies(parsed, []*http.Cookie{{Name: session.SessionCookieName, Value: payload.Token}})
	}

	httpClient := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
	}

	steps := []struct {
		step Step
		path string
		body map[string]any
	}{
		{StepLogin, loginPath, map[string]any{c.profile.TokenField: payload.Token}},
		{StepJWTLogin, loginPath, map[string]any{c.profile.JWTField: payload.Token}},
		{StepRecover, recoverPath, map[string]any{"mode": "info", "recovery": payload.Token}},
		{StepHeartbeat, heartbeatPath, map[string]any{"heartbeat": true}},
		{StepProfile, profilePath, map[string]any{}},
	}

	var finalBody []byte
	for _, s := range steps {
		c.logger.Debug().Str("step", string(s.step)).Str("path", s.path).Msg("handshake step")
		body, err := c.post(ctx, httpClient, payload, baseURL+s.path, s.step, s.body)
		if err != nil {
			return session.Session{}, err
		}
		finalBody = body
	}

	var appLink appLinkResponse
	if err := json.Unmarshal(finalBody, &appLink); err != nil {
		return session.Session{}, &Error{Step: StepProfile, Err: errors.Wrap(err, "decode app link response")}
	}

	rotated, err := deeplink.Parse(appLink.Payload.AppLink)
	if err != nil {
		return session.Session{}, &Error{Step: StepProfile, Err: errors.Wrap(err, "decode returned app link")}
	}

	// QR sessions carry no browser cookies initially; mid-flow JSESSIONID
	// issuance is captured later by the API client.
	return session.Session{
		BaseURL:    baseURL,
		JSessionID: rotated.Token,
	}, nil
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, payload *deeplink.Payload, fullURL string, step Step, body map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Step: step, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, &Error{Step: step, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+payload.Token)
	req.Header.Set("X-User-Number", payload.UserNumber)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &Error{Step: step, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Step: step, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Step: step, Err: errors.Wrap(err, "read response body")}
	}
	return data, nil
}

// Package portal proxies authenticated JSON API calls to the SEQTA portal.
// Every request derives its credentials from the session store at call time;
// nothing is cached across calls, because the login watcher may rewrite the
// store at any moment.
package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	logoutPath     = "/saml2?logout"
	filePath       = "/seqta/student/load/file"
	fileUploadPath = "/seqta/student/file/upload/xhr2"

	defaultTimeout = 60 * time.Second
)

// Request describes one proxied portal call on behalf of the UI.
type Request struct {
	// URL is either absolute or relative to the session's base URL.
	URL string

	// Method is GET or POST; GET when empty.
	Method string

	// Headers are extra request headers.
	Headers map[string]string

	// Params are query parameters.
	Params map[string]string

	// Body is the JSON body for POST requests. Object bodies of JWT
	// sessions get the token injected under a "jwt" key.
	Body any

	// AsBase64 returns the response bytes base64-encoded (images).
	AsBase64 bool

	// ReturnFinalURL returns the post-redirect URL instead of the body.
	ReturnFinalURL bool
}

// Client is the authenticated portal HTTP client.
type Client struct {
	store      session.Store
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the underlying transport (for testing).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = &defaultHeaderTransport{base: rt}
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a portal client reading credentials from store.
func NewClient(store session.Store, options ...Option) *Client {
	c := &Client{
		store: store,
		httpClient: &http.Client{
			Transport: &defaultHeaderTransport{base: http.DefaultTransport},
			Timeout:   defaultTimeout,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Fetch performs one authenticated portal call and returns the body text,
// base64 bytes or final URL depending on the request's result mode. Network
// failures surface as a single descriptive error; the caller decides whether
// to re-trigger login.
func (c *Client) Fetch(ctx context.Context, r Request) (string, error) {
	sess := c.normalizeAndPersist()

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	fullURL := r.URL
	if !strings.HasPrefix(fullURL, "http") {
		fullURL = sess.BaseURL + fullURL
	}
	fullURL, err := appendParams(fullURL, r.Params)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Fetch] build request URL")
	}

	var bodyReader io.Reader
	if method == http.MethodPost {
		encoded, err := encodeBody(sess, r.Body)
		if err != nil {
			return "", errors.Wrap(err, "[Client.Fetch] encode request body")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Fetch] build request")
	}
	injectCredentials(req.Header, sess)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	if sess.IsJWT() {
		c.captureRotation(sess, resp)
	}

	switch {
	case r.AsBase64:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errors.Wrap(err, "[Client.Fetch] read response body")
		}
		return base64.StdEncoding.EncodeToString(data), nil
	case r.ReturnFinalURL:
		return resp.Request.URL.String(), nil
	default:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errors.Wrap(err, "[Client.Fetch] read response body")
		}
		return string(data), nil
	}
}

// Get performs a GET with query parameters.
func (c *Client) Get(ctx context.Context, url string, params map[string]string) (string, error) {
	return c.Fetch(ctx, Request{URL: url, Method: http.MethodGet, Params: params})
}

// Post performs a POST with a JSON body and query parameters.
func (c *Client) Post(ctx context.Context, url string, body any, params map[string]string) (string, error) {
	return c.Fetch(ctx, Request{URL: url, Method: http.MethodPost, Body: body, Params: params})
}

// GetFile resolves a portal file reference to its download URL.
func (c *Client) GetFile(ctx context.Context, fileType, fileUUID string) (string, error) {
	return c.Fetch(ctx, Request{
		URL:            filePath,
		Method:         http.MethodGet,
		Params:         map[string]string{"type": fileType, "file": fileUUID},
		ReturnFinalURL: true,
	})
}

// UploadFile uploads a local file through the portal's xhr2 endpoint the way
// the web UI does.
func (c *Client) UploadFile(ctx context.Context, fileName, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "[Client.UploadFile] read file")
	}

	sess := c.normalizeAndPersist()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sess.BaseURL+fileUploadPath, bytes.NewReader(content))
	if err != nil {
		return "", errors.Wrap(err, "[Client.UploadFile] build request")
	}
	injectCredentials(req.Header, sess)
	req.Header.Set("X-File-Name", url.QueryEscape(fileName))
	req.Header.Set("X-Accept-Mimes", "null")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "file upload failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "[Client.UploadFile] read response body")
	}
	return string(data), nil
}

// Logout tells the portal to end the session, best effort, then clears the
// persisted record.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Get(ctx, logoutPath, nil); err != nil {
		c.logger.Warn().Err(err).Msg("portal logout request failed")
	}
	return c.store.Clear()
}

// normalizeAndPersist reloads the session and purges duplicate JSESSIONID
// captures before any headers are derived from it. More than one auxiliary
// session cookie indicates a stale capture; all of them are dropped and the
// cleaned record persisted immediately.
func (c *Client) normalizeAndPersist() session.Session {
	sess := c.store.Load()
	if !sess.IsJWT() {
		return sess
	}
	if len(sess.SessionCookies()) <= 1 {
		return sess
	}

	cleaned := sess.WithoutSessionCookies()
	if err := c.store.Save(cleaned); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist session-cookie cleanup")
	}
	return cleaned
}

// injectCredentials derives the outgoing auth headers from the session.
func injectCredentials(header http.Header, sess session.Session) {
	if sess.IsJWT() {
		header.Set("Authorization", "Bearer "+sess.JSessionID)
		if cookies := sess.SessionCookies(); len(cookies) == 1 {
			header.Set("Cookie", session.SessionCookieName+"="+cookies[0])
		}
	} else {
		var parts []string
		if sess.JSessionID != "" {
			parts = append(parts, session.SessionCookieName+"="+sess.JSessionID)
		}
		for _, cookie := range sess.AdditionalCookies {
			parts = append(parts, cookie.Name+"="+cookie.Value)
		}
		if len(parts) > 0 {
			header.Set("Cookie", strings.Join(parts, "; "))
		}
	}

	if sess.BaseURL != "" {
		header.Set("Origin", sess.BaseURL)
		header.Set("Referer", sess.BaseURL)
	}
}

// captureRotation watches JWT-session responses for a silently issued
// JSESSIONID and persists it immediately so subsequent calls stay
// authenticated.
func (c *Client) captureRotation(sess session.Session, resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name != session.SessionCookieName || cookie.Value == "" {
			continue
		}
		updated := sess.WithoutSessionCookies()
		updated.AdditionalCookies = append(updated.AdditionalCookies, session.Cookie{
			Name:  session.SessionCookieName,
			Value: cookie.Value,
		})
		if err := c.store.Save(updated); err != nil {
			c.logger.Error().Err(err).Msg("failed to persist rotated session cookie")
			return
		}
		c.logger.Debug().Msg("captured rotated session cookie")
		return
	}
}

// encodeBody marshals the POST body, injecting the JWT into object bodies of
// JWT sessions the way the portal's own client does.
func encodeBody(sess session.Session, body any) ([]byte, error) {
	bodyMap := map[string]any{}
	switch b := body.(type) {
	case nil:
	case map[string]any:
		for k, v := range b {
			bodyMap[k] = v
		}
	default:
		// Non-object bodies pass through untouched.
		return json.Marshal(body)
	}

	if sess.IsJWT() {
		bodyMap["jwt"] = sess.JSessionID
	}
	return json.Marshal(bodyMap)
}

func appendParams(rawURL string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

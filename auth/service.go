// Package auth establishes trusted sessions with the SEQTA portal. Three
// incompatible login mechanisms — interactive cookie harvesting, deep-link
// handoff and the QR/JWT SSO handshake — are reconciled here into the single
// persisted session model.
package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/ar-cyber/TauriSEQTA/auth/deeplink"
	"github.com/ar-cyber/TauriSEQTA/auth/handshake"
	"github.com/ar-cyber/TauriSEQTA/auth/watcher"
	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// AuthDeepLinkPrefix is the app-internal handoff scheme: another instance
// passes a working cookie and portal URL through its query parameters.
const AuthDeepLinkPrefix = "desqta://auth"

// Events emitted through the Notifier.
const (
	// EventReload tells the UI a session is available and the shell should
	// reload into the authenticated portal.
	EventReload = "reload"

	// EventLoginFailed signals a terminal interactive-login failure
	// (timeout or cancelled surface).
	EventLoginFailed = "login_failed"
)

// Notifier delivers backend events to the UI layer.
type Notifier interface {
	Notify(event string)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// Service dispatches login requests to their flow and owns the lifecycle of
// the persisted session.
type Service struct {
	store          session.Store
	handshake      *handshake.Client
	watcher        *watcher.Watcher
	watcherOptions []watcher.Option
	notifier       Notifier
	logger         zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithWatcherOptions passes extra options to the interactive login watcher
// (poll interval, attempt bounds, clock).
func WithWatcherOptions(options ...watcher.Option) ServiceOption {
	return func(s *Service) { s.watcherOptions = options }
}

// NewService wires the login service. launcher opens interactive login
// surfaces; notifier receives reload/failure events.
func NewService(store session.Store, hs *handshake.Client, launcher watcher.Launcher, notifier Notifier, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	if hs == nil {
		return nil, errors.New("[NewService] handshake client is required")
	}
	if launcher == nil {
		return nil, errors.New("[NewService] surface launcher is required")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	s := &Service{
		store:     store,
		handshake: hs,
		notifier:  notifier,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	watcherOptions := append([]watcher.Option{
		watcher.WithLogger(s.logger),
		watcher.WithOnResult(s.onWatcherResult),
	}, s.watcherOptions...)
	s.watcher = watcher.New(launcher, store, watcherOptions...)
	return s, nil
}

// Login runs the flow matching the request variant. CookieHarvest returns as
// soon as the login surface is open; the other variants block until the
// session is persisted.
func (s *Service) Login(ctx context.Context, req LoginRequest) error {
	switch r := req.(type) {
	case QrSso:
		return s.loginQr(ctx, r)
	case DeepLinkHandoff:
		return s.loginHandoff(r)
	case CookieHarvest:
		_, err := s.watcher.Start(ctx, r.URL)
		return err
	default:
		return errors.Errorf("[Service.Login] unknown login request %T", req)
	}
}

func (s *Service) loginQr(ctx context.Context, r QrSso) error {
	payload, err := deeplink.Parse(r.Deeplink)
	if err != nil {
		return err
	}
	if err := deeplink.ValidateToken(payload.Token); err != nil {
		return err
	}

	sess, err := s.handshake.Perform(ctx, payload)
	if err != nil {
		return err
	}
	if err := s.store.Save(sess); err != nil {
		return errors.Wrap(err, "[Service.loginQr] save session")
	}

	s.logger.Info().Str("base_url", sess.BaseURL).Msg("QR SSO login complete")
	s.notifier.Notify(EventReload)
	return nil
}

func (s *Service) loginHandoff(r DeepLinkHandoff) error {
	if r.Cookie == "" || r.URL == "" {
		return errors.New("[Service.loginHandoff] both cookie and url are required")
	}
	if err := s.SaveSession(r.URL, r.Cookie); err != nil {
		return err
	}
	s.logger.Info().Str("base_url", r.URL).Msg("deep link handoff complete")
	s.notifier.Notify(EventReload)
	return nil
}

func (s *Service) onWatcherResult(result watcher.Result) {
	switch result.Outcome {
	case watcher.OutcomeFound:
		s.notifier.Notify(EventReload)
	default:
		s.logger.Warn().
			Str("attempt", result.AttemptID).
			Str("outcome", string(result.Outcome)).
			Msg("interactive login did not produce a session")
		s.notifier.Notify(EventLoginFailed)
	}
}

// SessionExists reports whether a usable session is persisted.
func (s *Service) SessionExists() bool {
	return s.store.Exists()
}

// SaveSession persists a bare base URL + JSESSIONID pair with no additional
// cookies.
func (s *Service) SaveSession(baseURL, jsessionid string) error {
	err := s.store.Save(session.Session{
		BaseURL:    baseURL,
		JSessionID: jsessionid,
	})
	return errors.Wrap(err, "[Service.SaveSession] save session")
}

// ParseAuthDeepLink extracts the handoff parameters from a desqta://auth
// link. Values are percent-decoded individually so cookie values survive
// characters that standard query parsing would mangle.
func ParseAuthDeepLink(raw string) (DeepLinkHandoff, error) {
	if !strings.HasPrefix(raw, AuthDeepLinkPrefix) {
		return DeepLinkHandoff{}, errors.Errorf("not a %s link", AuthDeepLinkPrefix)
	}

	_, query, found := strings.Cut(raw, "?")
	if !found {
		return DeepLinkHandoff{}, errors.New("auth deep link has no query string")
	}

	var handoff DeepLinkHandoff
	for _, param := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(param, "=")
		if !ok {
			continue
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return DeepLinkHandoff{}, errors.Wrapf(err, "decode %q parameter", key)
		}
		switch key {
		case "cookie":
			handoff.Cookie = decoded
		case "url":
			handoff.URL = decoded
		}
	}

	if handoff.Cookie == "" || handoff.URL == "" {
		return DeepLinkHandoff{}, errors.New("auth deep link needs both cookie and url parameters")
	}
	return handoff, nil
}

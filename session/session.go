// Package session holds the single persisted credential for the SEQTA portal
// and its durable storage. One session record exists per install; every
// component reloads it from the store rather than caching, because the login
// watcher and foreground API calls run concurrently.
package session

import "strings"

// SessionCookieName is the one cookie the portal treats as the session
// credential. It is stored separately as the primary token and filtered out
// of the additional cookie list.
const SessionCookieName = "JSESSIONID"

// Cookie is a single replayable browser cookie.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Session is the persisted credential unit. JSessionID is either a classic
// JSESSIONID cookie value (interactive login) or a JWT (QR/SSO login),
// distinguished structurally via IsJWT.
type Session struct {
	BaseURL           string   `json:"base_url"`
	JSessionID        string   `json:"jsessionid"`
	AdditionalCookies []Cookie `json:"additional_cookies"`
}

// Usable reports whether the session can authenticate requests: both the
// portal origin and the primary token must be present.
func (s Session) Usable() bool {
	return s.BaseURL != "" && s.JSessionID != ""
}

// IsJWT reports whether the primary token is structurally a JWT: three
// dot-separated segments starting with the conventional base64url header
// prefix.
func (s Session) IsJWT() bool {
	return IsJWT(s.JSessionID)
}

// IsJWT reports whether token looks like a JWT rather than a cookie value.
func IsJWT(token string) bool {
	return strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2
}

// SessionCookies returns the values of every additional cookie named
// JSESSIONID. More than one indicates a stale capture that needs purging.
func (s Session) SessionCookies() []string {
	var values []string
	for _, c := range s.AdditionalCookies {
		if c.Name == SessionCookieName {
			values = append(values, c.Value)
		}
	}
	return values
}

// WithoutSessionCookies returns a copy of the session with every additional
// JSESSIONID cookie removed.
func (s Session) WithoutSessionCookies() Session {
	kept := make([]Cookie, 0, len(s.AdditionalCookies))
	for _, c := range s.AdditionalCookies {
		if c.Name != SessionCookieName {
			kept = append(kept, c)
		}
	}
	s.AdditionalCookies = kept
	return s
}

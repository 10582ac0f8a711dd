package server

import (
	"sync"
	"time"

	"github.com/ar-cyber/TauriSEQTA/auth/watcher"
	"github.com/pkg/errors"
)

// Login surface events pushed to the shell. EventOpenLogin carries the URL
// to open after the ":" separator.
const (
	EventOpenLogin  = "open_login"
	EventCloseLogin = "close_login"
)

var _ watcher.Launcher = (*SurfaceBridge)(nil)

// SurfaceBridge is the production login surface. The backend cannot see into
// the shell's webview directly, so Open asks the shell (via the event
// stream) to open a login window, and the shell reports the window's address
// and cookies back through POST /auth/surface. The watcher polls whatever
// snapshot the shell last reported.
type SurfaceBridge struct {
	events *EventHub

	mu      sync.Mutex
	current *RemoteSurface
}

// NewSurfaceBridge creates a bridge publishing open/close requests on events.
func NewSurfaceBridge(events *EventHub) *SurfaceBridge {
	return &SurfaceBridge{events: events}
}

// Open asks the shell to open a login window at url. Only one login window
// exists at a time; opening replaces any previous surface.
func (b *SurfaceBridge) Open(url string) (watcher.Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		b.current.close()
	}
	b.current = &RemoteSurface{bridge: b}
	b.events.Notify(EventOpenLogin + ":" + url)
	return b.current, nil
}

// Report feeds a snapshot from the shell into the active surface.
func (b *SurfaceBridge) Report(url string, cookies []watcher.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return errors.New("[SurfaceBridge.Report] no login window open")
	}
	b.current.update(url, cookies)
	return nil
}

func (b *SurfaceBridge) closed(s *RemoteSurface) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == s {
		b.current = nil
	}
	b.events.Notify(EventCloseLogin)
}

// RemoteSurface mirrors the state of the shell-owned login window as last
// reported over the bridge.
type RemoteSurface struct {
	bridge *SurfaceBridge

	mu      sync.Mutex
	url     string
	cookies []watcher.Cookie
	closed  bool
}

func (s *RemoteSurface) update(url string, cookies []watcher.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.cookies = cookies
}

// CurrentURL returns the last address the shell reported. It errors until
// the first snapshot arrives so the watcher keeps waiting.
func (s *RemoteSurface) CurrentURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("[RemoteSurface.CurrentURL] login window closed")
	}
	if s.url == "" {
		return "", errors.New("[RemoteSurface.CurrentURL] no snapshot reported yet")
	}
	return s.url, nil
}

// Cookies returns the cookies from the last reported snapshot.
func (s *RemoteSurface) Cookies() ([]watcher.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("[RemoteSurface.Cookies] login window closed")
	}
	out := make([]watcher.Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out, nil
}

// Close tells the shell to close the login window.
func (s *RemoteSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.bridge.closed(s)
	return nil
}

func (s *RemoteSurface) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type surfaceReport struct {
	URL     string          `json:"url"`
	Cookies []surfaceCookie `json:"cookies"`
}

// surfaceCookie is a cookie as the shell's webview reports it, with the
// expiry as unix seconds.
type surfaceCookie struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Domain  string  `json:"domain"`
	Path    string  `json:"path"`
	Expires float64 `json:"expires"`
}

func (r surfaceReport) watcherCookies() []watcher.Cookie {
	cookies := make([]watcher.Cookie, 0, len(r.Cookies))
	for _, c := range r.Cookies {
		cookie := watcher.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}

package surfacefakes

import (
	"sync"

	"github.com/ar-cyber/TauriSEQTA/auth/watcher"
	"github.com/pkg/errors"
)

var _ watcher.Surface = (*ScriptedSurface)(nil)
var _ watcher.Launcher = (*FakeLauncher)(nil)

// Frame is the surface state reported for one poll tick.
type Frame struct {
	URL     string
	Cookies []watcher.Cookie
}

// ScriptedSurface replays a fixed sequence of frames, one per inspection.
// Once the script runs out the last frame repeats.
type ScriptedSurface struct {
	mu     sync.Mutex
	frames []Frame
	urlIdx int
	closed bool
}

func NewScriptedSurface(frames ...Frame) *ScriptedSurface {
	return &ScriptedSurface{frames: frames}
}

func (s *ScriptedSurface) current() (Frame, error) {
	if len(s.frames) == 0 {
		return Frame{}, errors.New("no frames scripted")
	}
	if s.closed {
		return Frame{}, errors.New("surface closed")
	}
	idx := s.urlIdx
	if idx >= len(s.frames) {
		idx = len(s.frames) - 1
	}
	return s.frames[idx], nil
}

// CurrentURL advances the script by one frame per call, mirroring the
// watcher's one-inspection-per-tick rhythm.
func (s *ScriptedSurface) CurrentURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame, err := s.current()
	if err != nil {
		return "", err
	}
	s.urlIdx++
	return frame.URL, nil
}

func (s *ScriptedSurface) Cookies() ([]watcher.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Cookies are read after CurrentURL in the same tick; report the frame
	// that URL call consumed.
	if s.closed {
		return nil, errors.New("surface closed")
	}
	idx := s.urlIdx - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.frames) {
		idx = len(s.frames) - 1
	}
	return s.frames[idx].Cookies, nil
}

func (s *ScriptedSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *ScriptedSurface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeLauncher hands out a pre-built surface and records the URL it was
// asked to open.
type FakeLauncher struct {
	mu      sync.Mutex
	surface watcher.Surface
	openURL string

	// OpenErr, when set, is returned by Open.
	OpenErr error
}

func NewFakeLauncher(surface watcher.Surface) *FakeLauncher {
	return &FakeLauncher{surface: surface}
}

func (l *FakeLauncher) Open(url string) (watcher.Surface, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	l.openURL = url
	return l.surface, nil
}

func (l *FakeLauncher) OpenedURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openURL
}

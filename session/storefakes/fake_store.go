package storefakes

import (
	"sync"

	"github.com/ar-cyber/TauriSEQTA/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store for tests. It records save and
// clear counts so tests can assert on persistence side effects.
type FakeStore struct {
	mu      sync.RWMutex
	current session.Session
	saves   int
	clears  int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (f *FakeStore) Load() session.Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

func (f *FakeStore) Save(s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.current = s
	f.saves++
	return nil
}

func (f *FakeStore) Exists() bool {
	return f.Load().Usable()
}

func (f *FakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = session.Session{}
	f.clears++
	return nil
}

func (f *FakeStore) SaveCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.saves
}

func (f *FakeStore) ClearCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.clears
}

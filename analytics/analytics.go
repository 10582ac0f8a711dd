// Package analytics stores the UI's local analytics document. The backend
// treats it as an opaque JSON blob.
package analytics

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const analyticsFileName = "analytics.json"

// Store persists the analytics blob in the application data directory.
type Store struct {
	path string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, analyticsFileName)}
}

// Save overwrites the analytics document.
func (s *Store) Save(data string) error {
	return errors.Wrap(os.WriteFile(s.path, []byte(data), 0o600), "[analytics.Store.Save] write analytics file")
}

// Load returns the analytics document.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", errors.Wrap(err, "[analytics.Store.Load] read analytics file")
	}
	return string(data), nil
}

// Delete removes the analytics document. Absence is success.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[analytics.Store.Delete] remove analytics file")
	}
	return nil
}

package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const sessionFileName = "session.json"

// Store is the durable home of the session record. Load never fails the
// caller: an unreadable or corrupt record degrades to the empty session.
type Store interface {
	// Load reads the persisted session, returning the zero Session on any
	// read or parse failure.
	Load() Session

	// Save atomically overwrites the persisted session.
	Save(Session) error

	// Exists reports whether a usable session is persisted.
	Exists() bool

	// Clear deletes the persisted session. Absence is success.
	Clear() error
}

// FileStore persists the session as a JSON file in the application data
// directory. Saves go through a temp-file rename so a concurrent Load never
// observes a partial record.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, sessionFileName)}
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load() Session {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return Session{}
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}
	}
	return s
}

func (fs *FileStore) Save(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal session")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), sessionFileName+".*")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] close temp file")
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] rename into place")
	}
	return nil
}

func (fs *FileStore) Exists() bool {
	return fs.Load().Usable()
}

func (fs *FileStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove session file")
	}
	return nil
}

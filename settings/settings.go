// Package settings persists the shell's user preferences.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const settingsFileName = "settings.json"

// Shortcut is a user-pinned link shown on the dashboard.
type Shortcut struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
	URL  string `json:"url"`
}

// Settings is the persisted preference record.
type Settings struct {
	Shortcuts        []Shortcut `json:"shortcuts"`
	WeatherEnabled   bool       `json:"weather_enabled"`
	WeatherCity      string     `json:"weather_city"`
	WeatherCountry   string     `json:"weather_country"`
	RemindersEnabled bool       `json:"reminders_enabled"`
	ForceUseLocation bool       `json:"force_use_location"`
	AccentColor      string     `json:"accent_color"`
}

// Default returns the out-of-the-box settings.
func Default() Settings {
	return Settings{
		Shortcuts:        []Shortcut{},
		RemindersEnabled: true,
		AccentColor:      "#3b82f6",
	}
}

// Store persists settings as JSON in the application data directory.
type Store struct {
	path string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, settingsFileName)}
}

// Load reads the persisted settings, falling back to defaults on any read or
// parse failure.
func (s *Store) Load() Settings {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Default()
	}
	settings := Default()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Default()
	}
	return settings
}

// Save overwrites the persisted settings.
func (s *Store) Save(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "[settings.Store.Save] marshal settings")
	}
	return errors.Wrap(os.WriteFile(s.path, data, 0o600), "[settings.Store.Save] write settings file")
}

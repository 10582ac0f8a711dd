// Package appdirs resolves the per-user application data directory that the
// desktop shell keeps its session, settings and analytics records in.
package appdirs

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

const appFolderName = "DesQTA"

// EnvDataDir overrides the resolved data directory when set. Used by tests
// and portable installs.
const EnvDataDir = "DESQTA_DATA_DIR"

// DataDir returns the application data directory, creating it if needed.
// e.g. %APPDATA%\DesQTA on Windows, ~/Library/Application Support/DesQTA on
// macOS, $XDG_DATA_HOME/DesQTA (or ~/.local/share/DesQTA) elsewhere.
func DataDir() (string, error) {
	if override := os.Getenv(EnvDataDir); override != "" {
		if err := os.MkdirAll(override, 0o700); err != nil {
			return "", errors.Wrap(err, "[appdirs.DataDir] create override dir")
		}
		return override, nil
	}

	base, err := platformDataRoot()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(base, appFolderName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "[appdirs.DataDir] create data dir")
	}
	return dir, nil
}

func platformDataRoot() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData, nil
		}
		return "", errors.New("[appdirs] APPDATA is not set")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "[appdirs] resolve home dir")
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return xdg, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "[appdirs] resolve home dir")
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

package util

import (
	"os"
	"path/filepath"
)

// AppName names the per-user config, data and log directories.
const AppName = "physbot"

// ConfigDir returns <os.UserConfigDir>/<AppName>:
//   - Linux/Unix:  $XDG_CONFIG_HOME/<AppName>, else ~/.config/<AppName>
//   - macOS:       ~/Library/Application Support/<AppName>
//   - Windows:     %AppData%/<AppName>
//
// Without a resolvable home it falls back to ./config/<AppName>.
func ConfigDir() string {
	return userDir(os.UserConfigDir, "config")
}

// DefaultConfigFile is <ConfigDir>/config.yaml, read when present and no
// file was given explicitly.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the directory holding the SQLite database.
func DataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

// LogDir returns <os.UserCacheDir>/<AppName>/logs. Rotated logs are
// disposable, so they sit with the cache rather than the config.
func LogDir() string {
	return filepath.Join(userDir(os.UserCacheDir, "cache"), "logs")
}

// DefaultDatabasePath is <DataDir>/physbot.db.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), AppName+".db")
}

func userDir(base func() (string, error), fallback string) string {
	if dir, err := base(); err == nil && dir != "" {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", fallback, AppName)
}

package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wamsg.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wamsg")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SessionDBPath returns the whatsmeow credential store path.
func SessionDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// CachePath returns the message cache file path.
func CachePath(name string) string {
	return filepath.Join(Dir(name), "cache.json")
}

// LockPath returns the connection lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the session log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wamsg.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

package logging

import (
	"os"
	"path/filepath"
)

// StateDir returns the directory indexaudit uses for its own state
// (logs, run locks). Falls back to the temp directory if the home
// directory is unavailable. Nothing is ever written into audited trees.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".indexaudit")
	}
	return filepath.Join(home, ".indexaudit")
}

// DefaultLogDir returns the default log directory (~/.indexaudit/logs/).
func DefaultLogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// DefaultLogPath returns the default audit log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "audit.log")
}

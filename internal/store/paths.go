package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of evolab's data directory.
	DirName = ".evolab"

	// DBFile is the SQLite database file inside the data directory.
	DBFile = "evolab.db"
)

// GlobalEvolabPath returns the path to the global .evolab directory.
// On Unix: ~/.evolab
// On Windows: %USERPROFILE%\.evolab
func GlobalEvolabPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalEvolabPath returns the path to the .evolab directory for a project root.
func LocalEvolabPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// EnsureDir creates dir if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// Package pathutil guards file paths supplied by users, such as backup
// output and restore input.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dataDir mirrors store.DirName; pathutil stays free of store imports.
const dataDir = ".evolab"

// RedactPath shortens path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath returns an error unless path resolves inside one of
// allowedDirs. Symlinks on existing ancestors are resolved first, so a
// link inside an allowed directory cannot point outside it.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("invalid path: empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("invalid path: no allowed directories")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("invalid path: contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	resolvedDir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(abs))

	for _, dir := range allowedDirs {
		allowed, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		allowed, err = resolveExisting(allowed)
		if err != nil {
			continue
		}
		if within(resolved, allowed) {
			return nil
		}
	}
	return fmt.Errorf("invalid path: %q is outside allowed directories", RedactPath(abs))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// dir and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// BackupDirs returns where backup files may be written or read from:
// <root>/.evolab/<sub> and ~/.evolab/<sub>. The home directory is
// omitted when it cannot be determined.
func BackupDirs(root, sub string) []string {
	dirs := []string{filepath.Join(root, dataDir, sub)}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, dataDir, sub))
	}
	return dirs
}

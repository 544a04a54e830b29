package digest

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the output directory. An existing directory is fine.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// FilePath returns where the digest for date lives inside dir.
func FilePath(dir, date string) string {
	return filepath.Join(dir, date+".md")
}

// WriteFile writes d to <dir>/<date>.md, replacing any previous file, and returns
// the path written.
func WriteFile(dir string, d Digest) (string, error) {
	path := FilePath(dir, d.Date)
	if err := os.WriteFile(path, []byte(d.Render()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return path, nil
}

package digest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("digest not found")
	ErrInvalidDate = errors.New("invalid date")
)

// Dir serves digests previously written to an output directory.
type Dir struct {
	Path string
}

// ListDates returns the dates that have a digest file, ascending. A missing
// directory holds no digests.
func (d Dir) ListDates(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", d.Path, err)
	}

	dates := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		date := strings.TrimSuffix(e.Name(), ".md")
		if _, err := ParseDate(date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// Get returns the Markdown body of the digest for date.
func (d Dir) Get(_ context.Context, date string) (string, error) {
	if _, err := ParseDate(date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	data, err := os.ReadFile(FilePath(d.Path, date))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return "", fmt.Errorf("read digest %s: %w", date, err)
	}
	return string(data), nil
}

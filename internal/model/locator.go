package model

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// DefaultSuffix is the weight file extension accepted in directory scans.
	DefaultSuffix = ".bin"

	// DefaultMarker tags chat-tuned weight files.
	DefaultMarker = "-chat"

	scanBatch = 64
)

// DefaultSearchLocations returns the built-in search order: two well-known
// Llama 2 chat files, then the directory that usually holds them.
func DefaultSearchLocations() []string {
	return []string{
		"/usr/lib/llama/llama-2-7b-chat.ggmlv3.q4_1.bin",
		"/usr/lib/llama/llama-2-13b-chat.ggmlv3.q4_1.bin",
		"/usr/lib/llama",
	}
}

// Locator finds a model file when none is given.
type Locator struct {
	// Locations are probed in order. Each is a candidate file or a directory to scan.
	Locations []string

	// Suffix is the required file name suffix in directory scans.
	Suffix string

	// Marker is the required file name substring in directory scans.
	Marker string

	// SortCandidates scans directory entries in lexical order instead of the
	// order the filesystem returns them in.
	SortCandidates bool
}

// NewLocator creates a locator over the default locations followed by extra.
func NewLocator(extra ...string) *Locator {
	return &Locator{
		Locations: append(DefaultSearchLocations(), extra...),
		Suffix:    DefaultSuffix,
		Marker:    DefaultMarker,
	}
}

// Resolve returns explicit unchecked when set, otherwise the first match of Find.
func (l *Locator) Resolve(explicit string) (Resolved, error) {
	if explicit != "" {
		return Resolved{Path: explicit, Origin: OriginExplicit}, nil
	}

	path, err := l.Find()
	if err != nil {
		return Resolved{}, err
	}

	return Resolved{Path: path, Origin: OriginDiscovered}, nil
}

// Find probes every location in order and returns the first usable path.
//
// A location that does not exist is skipped. A location that is a file wins
// immediately. A directory is scanned once, non-recursively, for the first
// non-directory entry matching Suffix and Marker; without SortCandidates the
// winner depends on the filesystem's enumeration order. Any other access
// error is logged and the location is treated as empty.
func (l *Locator) Find() (string, error) {
	for _, loc := range l.Locations {
		info, err := os.Stat(loc)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("Model search location not found", "path", loc)
			continue
		case err != nil:
			slog.Warn("Failed to access model search location", "path", loc, "error", err)
			continue
		case !info.IsDir():
			slog.Debug("Model found", "path", loc)
			return loc, nil
		}

		found, err := l.scanDir(loc)
		if err != nil {
			slog.Warn("Failed to access directory", "path", loc, "error", err)
			continue
		}
		if found != "" {
			slog.Debug("Model found in directory", "dir", loc, "path", found)
			return found, nil
		}

		slog.Debug("No model in directory", "path", loc, "suffix", l.Suffix, "marker", l.Marker)
	}

	return "", ErrNotFound
}

// scanDir returns the first qualifying child of dir, or "" when none qualifies.
func (l *Locator) scanDir(dir string) (string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if l.SortCandidates {
		entries, err := f.ReadDir(-1)
		if err != nil {
			return "", err
		}
		slices.SortFunc(entries, func(a, b fs.DirEntry) int {
			return strings.Compare(a.Name(), b.Name())
		})
		return l.pick(dir, entries), nil
	}

	for {
		entries, err := f.ReadDir(scanBatch)
		if found := l.pick(dir, entries); found != "" {
			return found, nil
		}
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("read directory: %w", err)
		}
	}
}

func (l *Locator) pick(dir string, entries []fs.DirEntry) string {
	for _, e := range entries {
		if l.Matches(e.Name()) && !e.IsDir() {
			return filepath.Join(dir, e.Name())
		}
	}

	return ""
}

// Matches reports whether name carries both the weight suffix and the chat marker.
func (l *Locator) Matches(name string) bool {
	return strings.HasSuffix(name, l.Suffix) && strings.Contains(name, l.Marker)
}

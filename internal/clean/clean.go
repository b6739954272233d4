// Package clean discovers and removes the files simvue keeps on this machine.
package clean

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/simvue-io/simvue-cli/internal/config"
)

// Target kinds.
const (
	KindData   = "data"
	KindCache  = "cache"
	KindConfig = "config"
)

// Locations are the roots simvue may have written under.
type Locations struct {
	Home     string // user home directory
	CacheDir string // configured run cache directory
}

// Target is a file or directory eligible for removal.
type Target struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// candidates lists every path purge may remove. A cache dir nested in the
// data dir is covered by it.
func (l Locations) candidates() []Target {
	data := filepath.Join(l.Home, ".simvue")
	targets := []Target{{Path: data, Kind: KindData}}
	if l.CacheDir != "" && !within(data, l.CacheDir) {
		targets = append(targets, Target{Path: filepath.Clean(l.CacheDir), Kind: KindCache})
	}
	return append(targets, Target{Path: config.GlobalPath(l.Home), Kind: KindConfig})
}

// Discover returns the candidates that exist, with their disk usage.
func Discover(loc Locations) ([]Target, error) {
	if loc.Home == "" {
		return nil, fmt.Errorf("home directory unknown")
	}

	found := make([]Target, 0, 3)
	for _, t := range loc.candidates() {
		info, err := os.Stat(t.Path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.Size = info.Size()
		if info.IsDir() {
			t.Size = dirSize(t.Path)
		}
		found = append(found, t)
	}
	return found, nil
}

// Remove deletes targets. Only paths Discover could have produced for loc
// are eligible; anything else is refused.
// Returns the paths that were removed and any errors.
func Remove(loc Locations, targets []Target) (removed []string, errs []error) {
	allowed := make(map[string]bool)
	for _, c := range loc.candidates() {
		allowed[c.Path] = true
	}

	for _, t := range targets {
		if err := validateRemovalTarget(t.Path, loc.Home, allowed); err != nil {
			errs = append(errs, fmt.Errorf("refusing to delete %q: %s", t.Path, err))
			continue
		}
		if err := os.RemoveAll(t.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", t.Path, err))
			continue
		}
		removed = append(removed, t.Path)
	}
	return removed, errs
}

// validateRemovalTarget accepts a path when ALL of:
//  1. it is one of the candidate paths
//  2. it is neither the home directory nor one of its ancestors
//  3. it has at least 2 components
func validateRemovalTarget(path, home string, allowed map[string]bool) error {
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "." || clean == "" {
		return fmt.Errorf("empty path")
	}
	if !allowed[clean] {
		return fmt.Errorf("not a simvue location")
	}
	if home != "" && within(clean, home) {
		return fmt.Errorf("contains the home directory")
	}

	segments := 0
	for _, seg := range strings.Split(filepath.ToSlash(clean), "/") {
		if seg != "" {
			segments++
		}
	}
	if segments < 2 {
		return fmt.Errorf("path too shallow (need at least 2 components, got %d)", segments)
	}
	return nil
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// FormatSize renders a byte count like "1.5K" or "12M".
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}

package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIncludePatterns matches the image formats the header parser accepts.
// Patterns match the lowercased base name.
var DefaultIncludePatterns = []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.bmp"}

// fileFilter selects files by base name. Exclusions win over inclusions; an
// empty include list accepts everything not excluded.
type fileFilter struct {
	include []string
	exclude []string
}

func newFileFilter(include, exclude []string) (fileFilter, error) {
	f := fileFilter{include: lowerAll(include), exclude: lowerAll(exclude)}
	for _, p := range append(append([]string(nil), f.include...), f.exclude...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fileFilter{}, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return f, nil
}

func lowerAll(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func (f fileFilter) accepts(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if matchesAny(base, f.exclude) {
		return false
	}
	return len(f.include) == 0 || matchesAny(base, f.include)
}

func matchesAny(base string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// DiscoverFiles expands args into image file paths. Plain file arguments are
// kept when they pass the patterns. Directories are walked, recursively when
// recursive is set, skipping hidden entries. A path reached twice is listed
// once, at its first position.
func DiscoverFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	filter, err := newFileFilter(includePatterns, excludePatterns)
	if err != nil {
		return nil, err
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if filter.accepts(arg) {
				add(arg)
			}
			continue
		}
		if err := walkImages(arg, recursive, filter, add); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// walkImages visits dir in lexical order.
func walkImages(dir string, recursive bool, filter fileFilter, add func(string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if !recursive || hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && d.Type().IsRegular() && filter.accepts(path) {
			add(path)
		}
		return nil
	})
}

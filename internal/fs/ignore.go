package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns are always applied when walking a directory for a bundle import.
var defaultIgnorePatterns = []string{".git/"}

// ignorePattern is a parsed gitignore-style pattern.
type ignorePattern struct {
	pattern  string
	anchored bool // match against the path from the root instead of any single component
	dirOnly  bool // trailing '/': only directories match
	negate   bool // leading '!': re-include a previously ignored path
}

// IgnoreMatcher checks relative paths against gitignore-style patterns.
// Patterns without '/' match any single path component. Patterns containing
// '/' (or starting with it) are anchored to the root. A trailing '/' limits
// the pattern to directories, a leading '!' negates, and a leading "**/"
// matches at any depth. The last matching pattern wins.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var p ignorePattern
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		raw = strings.TrimPrefix(raw, "**/")
		if strings.Contains(raw, "/") {
			p.anchored = true
			raw = strings.TrimPrefix(raw, "/")
		}
		if raw == "" {
			continue
		}
		p.pattern = raw
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether relativePath is ignored. isDir tells whether the path
// itself is a directory; its parents always are.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	normalized := strings.Trim(filepath.ToSlash(relativePath), "/")
	if normalized == "" || len(m.patterns) == 0 {
		return false
	}
	parts := strings.Split(normalized, "/")

	ignored := false
	for _, p := range m.patterns {
		if p.matches(parts, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p ignorePattern) matches(parts []string, isDir bool) bool {
	for i := range parts {
		// Every component but the last is a directory.
		componentIsDir := i < len(parts)-1 || isDir
		if p.dirOnly && !componentIsDir {
			continue
		}

		var subject string
		if p.anchored {
			subject = strings.Join(parts[:i+1], "/")
		} else {
			subject = parts[i]
		}
		if ok, err := path.Match(p.pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

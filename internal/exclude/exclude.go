// Package exclude keeps deployed paths out of the external repositories
// they are deployed into, by editing each repository's info/exclude file.
package exclude

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"sincro-go/internal/sincro"
)

// markerPrefix starts the comment line that owns the pattern line after it.
const markerPrefix = "# sincro"

// GitExcludeManager implements sincro.ExclusionOracle on .git/info/exclude.
//
// Every entry it writes is a marker line naming the scope (a deployment id)
// followed by one anchored pattern line. Entries are only removed by the
// scope that added them; lines written by hand are never touched.
type GitExcludeManager struct {
	mu                 sync.Mutex
	globalExcludesFile string
	logger             sincro.Logger
}

var _ sincro.ExclusionOracle = (*GitExcludeManager)(nil)

// NewGitExcludeManager creates a manager. globalExcludesFile overrides the
// lookup of git's core.excludesFile when non-empty.
func NewGitExcludeManager(globalExcludesFile string, logger sincro.Logger) *GitExcludeManager {
	return &GitExcludeManager{
		globalExcludesFile: globalExcludesFile,
		logger:             logger,
	}
}

// IsVersionControlled reports whether path is the root of a git repository
// or worktree.
func (m *GitExcludeManager) IsVersionControlled(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          false,
		EnableDotGitCommonDir: true,
	})
	return err == nil
}

func (m *GitExcludeManager) IsExcluded(repoPath, relPath string) (bool, error) {
	excludePath, err := excludeFilePath(repoPath)
	if err != nil {
		return false, err
	}
	lines, err := readLines(excludePath)
	if err != nil {
		return false, err
	}

	pattern := normalize(relPath)
	for _, line := range lines {
		if matchesPattern(line, pattern) {
			return true, nil
		}
	}
	return false, nil
}

// AddExclusion appends an entry for relPath owned by scopeID. It is a no-op
// when scopeID already owns an entry for relPath.
func (m *GitExcludeManager) AddExclusion(repoPath, relPath, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	excludePath, err := excludeFilePath(repoPath)
	if err != nil {
		return err
	}
	lines, err := readLines(excludePath)
	if err != nil {
		return err
	}

	pattern := normalize(relPath)
	marker := markerFor(scopeID)
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == marker && matchesPattern(lines[i+1], pattern) {
			return nil
		}
	}

	lines = append(lines, marker, "/"+pattern)
	if err := writeLines(excludePath, lines); err != nil {
		return err
	}
	m.logger.Info("added exclusion", "repo", repoPath, "path", pattern, "scope", scopeID)
	return nil
}

// RemoveExclusion drops the entries for relPath owned by scopeID. Missing
// repositories and exclude files are not errors.
func (m *GitExcludeManager) RemoveExclusion(repoPath, relPath, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	excludePath, err := excludeFilePath(repoPath)
	if err != nil {
		if errors.Is(err, sincro.ErrNotAGitRepo) {
			return nil
		}
		return err
	}
	lines, err := readLines(excludePath)
	if err != nil {
		return err
	}

	pattern := normalize(relPath)
	marker := markerFor(scopeID)
	kept := make([]string, 0, len(lines))
	removed := 0
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == marker && i+1 < len(lines) && matchesPattern(lines[i+1], pattern) {
			i++
			removed++
			continue
		}
		kept = append(kept, lines[i])
	}
	if removed == 0 {
		return nil
	}

	if err := writeLines(excludePath, kept); err != nil {
		return err
	}
	m.logger.Info("removed exclusion", "repo", repoPath, "path", pattern, "scope", scopeID)
	return nil
}

// IsGloballyExcluded reports whether relPath is ignored by the user's global
// excludes file.
func (m *GitExcludeManager) IsGloballyExcluded(relPath string) (bool, error) {
	path := m.globalExcludesPath()
	if path == "" {
		return false, nil
	}
	lines, err := readLines(path)
	if err != nil {
		return false, err
	}

	var patterns []gitignore.Pattern
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(trimmed, nil))
	}

	parts := strings.Split(normalize(relPath), "/")
	return gitignore.NewMatcher(patterns).Match(parts, false), nil
}

// globalExcludesPath resolves core.excludesFile, falling back to the XDG
// default. It returns "" when no file exists.
func (m *GitExcludeManager) globalExcludesPath() string {
	candidates := []string{m.globalExcludesFile}
	if m.globalExcludesFile == "" {
		out, err := exec.Command("git", "config", "--global", "--path", "core.excludesFile").Output()
		if err == nil {
			candidates = append(candidates, strings.TrimSpace(string(out)))
		}
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			candidates = append(candidates, filepath.Join(xdg, "git", "ignore"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".config", "git", "ignore"))
		}
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.HasPrefix(c, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				c = filepath.Join(home, c[1:])
			}
		}
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// excludeFilePath locates info/exclude for the repository at repoPath. For
// linked worktrees the file lives in the common git directory.
func excludeFilePath(repoPath string) (string, error) {
	dotGit := filepath.Join(repoPath, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", fmt.Errorf("%s: %w", repoPath, sincro.ErrNotAGitRepo)
	}
	if info.IsDir() {
		return filepath.Join(dotGit, "info", "exclude"), nil
	}

	gitDir, err := readPointer(dotGit, "gitdir:")
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dotGit, err)
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoPath, gitDir)
	}
	if common, err := readPointer(filepath.Join(gitDir, "commondir"), ""); err == nil {
		if !filepath.IsAbs(common) {
			common = filepath.Join(gitDir, common)
		}
		gitDir = common
	}
	return filepath.Join(filepath.Clean(gitDir), "info", "exclude"), nil
}

func readPointer(path, prefix string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(b))
	if prefix != "" {
		rest, ok := strings.CutPrefix(line, prefix)
		if !ok {
			return "", fmt.Errorf("unexpected content %q", line)
		}
		line = strings.TrimSpace(rest)
	}
	return line, nil
}

func markerFor(scopeID string) string {
	return markerPrefix + " [" + scopeID + "]"
}

func normalize(relPath string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(relPath)), "/")
}

func matchesPattern(line, pattern string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == pattern || trimmed == "/"+pattern
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

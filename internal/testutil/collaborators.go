package testutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"sincro-go/internal/sincro"
)

// FakeExclusionOracle records exclusions in memory keyed by repository.
// Repositories are recognised by path; AddRepo registers one.
type FakeExclusionOracle struct {
	mu      sync.Mutex
	repos   map[string]bool
	entries map[string]map[string]bool // repo -> "scope\x00path"
	global  map[string]bool

	// AddErr, when set, is returned by AddExclusion.
	AddErr error
}

var _ sincro.ExclusionOracle = (*FakeExclusionOracle)(nil)

func NewFakeExclusionOracle() *FakeExclusionOracle {
	return &FakeExclusionOracle{
		repos:   make(map[string]bool),
		entries: make(map[string]map[string]bool),
		global:  make(map[string]bool),
	}
}

// AddRepo marks path as a version-controlled repository.
func (o *FakeExclusionOracle) AddRepo(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repos[filepath.Clean(path)] = true
}

// SetGloballyExcluded marks relPath as ignored by the global excludes file.
func (o *FakeExclusionOracle) SetGloballyExcluded(relPath string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.global[relPath] = true
}

func (o *FakeExclusionOracle) IsVersionControlled(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.repos[filepath.Clean(path)]
}

func (o *FakeExclusionOracle) IsExcluded(repoPath, relPath string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.entries[filepath.Clean(repoPath)] {
		if pathOf(key) == filepath.ToSlash(relPath) {
			return true, nil
		}
	}
	return false, nil
}

func (o *FakeExclusionOracle) AddExclusion(repoPath, relPath, scopeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.AddErr != nil {
		return o.AddErr
	}
	repo := filepath.Clean(repoPath)
	if !o.repos[repo] {
		return fmt.Errorf("%s: %w", repoPath, sincro.ErrNotAGitRepo)
	}
	if o.entries[repo] == nil {
		o.entries[repo] = make(map[string]bool)
	}
	o.entries[repo][scopeID+"\x00"+filepath.ToSlash(relPath)] = true
	return nil
}

func (o *FakeExclusionOracle) RemoveExclusion(repoPath, relPath, scopeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	repo := filepath.Clean(repoPath)
	if !o.repos[repo] {
		return fmt.Errorf("%s: %w", repoPath, sincro.ErrNotAGitRepo)
	}
	delete(o.entries[repo], scopeID+"\x00"+filepath.ToSlash(relPath))
	return nil
}

func (o *FakeExclusionOracle) IsGloballyExcluded(relPath string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.global[relPath], nil
}

// Entries returns the sorted paths excluded under scopeID in repoPath.
func (o *FakeExclusionOracle) Entries(repoPath, scopeID string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var paths []string
	prefix := scopeID + "\x00"
	for key := range o.entries[filepath.Clean(repoPath)] {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			paths = append(paths, key[len(prefix):])
		}
	}
	sort.Strings(paths)
	return paths
}

func pathOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[i+1:]
		}
	}
	return key
}

// FakeWatcher records which scopes are watched and at which path.
type FakeWatcher struct {
	mu      sync.Mutex
	watches map[string]string

	// WatchErr, when set, is returned by Watch.
	WatchErr error
}

var _ sincro.Watcher = (*FakeWatcher)(nil)

func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{watches: make(map[string]string)}
}

func (w *FakeWatcher) Watch(scopeID, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.WatchErr != nil {
		return w.WatchErr
	}
	w.watches[scopeID] = path
	return nil
}

func (w *FakeWatcher) Unwatch(scopeID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watches, scopeID)
	return nil
}

func (w *FakeWatcher) IsWatching(scopeID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watches[scopeID]
	return ok
}

// WatchedPath returns the path watched for scopeID, or "".
func (w *FakeWatcher) WatchedPath(scopeID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watches[scopeID]
}

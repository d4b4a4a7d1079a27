package sincro

// ExclusionOracle answers and edits git exclusion state for external
// repositories. Entries added under a scope id are removed only by the same id.
type ExclusionOracle interface {
	IsVersionControlled(path string) bool
	IsExcluded(repoPath, relPath string) (bool, error)
	AddExclusion(repoPath, relPath, scopeID string) error
	RemoveExclusion(repoPath, relPath, scopeID string) error
	IsGloballyExcluded(relPath string) (bool, error)
}

// Watcher installs filesystem watches keyed by deployment id. Events are
// delivered out of band by the implementation.
type Watcher interface {
	Watch(scopeID, path string) error
	Unwatch(scopeID string) error
	IsWatching(scopeID string) bool
}

// FilesystemManager is the file I/O the content mirror needs.
type FilesystemManager interface {
	Exists(path string) bool
	IsDir(path string) bool
	ReadFile(path string) ([]byte, error)
	// WriteFile writes data, creating parent directories as needed.
	WriteFile(path string, data []byte) error
	Remove(path string) error
	RemoveAll(path string) error
	MkdirAll(path string) error
	// Resolve returns the absolute, cleaned form of path.
	Resolve(path string) (string, error)
	// FindFiles lists regular files under root as sorted slash-separated
	// relative paths.
	FindFiles(root string) ([]string, error)
}

package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sincro-go/internal/sincro"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager. ignorePatterns are
// applied by FindFiles when importing a bundle from a directory.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore: NewIgnoreMatcher(append(append([]string{}, defaultIgnorePatterns...), ignorePatterns...)),
	}
}

// Resolve returns the absolute, cleaned form of rawPath. The path does not
// have to exist.
func (m *OSFilesystemManager) Resolve(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

func (m *OSFilesystemManager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (m *OSFilesystemManager) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (m *OSFilesystemManager) ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	return os.ReadFile(path)
}

// WriteFile writes data to path, creating parent directories. An existing
// file keeps its permission bits.
func (m *OSFilesystemManager) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Remove deletes a single file. A missing file is not an error.
func (m *OSFilesystemManager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (m *OSFilesystemManager) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (m *OSFilesystemManager) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// FindFiles returns the slash-separated paths of regular files under root,
// relative to root and sorted, skipping anything the ignore patterns match.
func (m *OSFilesystemManager) FindFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if m.ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

var _ sincro.FilesystemManager = (*OSFilesystemManager)(nil)

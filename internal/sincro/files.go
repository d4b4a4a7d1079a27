package sincro

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"sincro-go/internal/model"
)

// CreateFile creates a single managed file whose store starts with an empty
// content entry.
func (s *Service) CreateFile(ctx context.Context, name, alias string) (*model.ManagedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("file name is required: %w", ErrInvalidArgument)
	}

	id := s.idgen.New()
	storePath := s.StorePath(id)
	err := s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if err := s.store.Init(ctx, storePath); err != nil {
			return err
		}
		if err := s.fsmgr.WriteFile(storeEntryPath(storePath, ContentEntry), nil); err != nil {
			return err
		}
		_, err := s.store.Commit(ctx, storePath, ContentEntry, "Initial empty file")
		return err
	})
	if err != nil {
		s.discardStore(storePath)
		return nil, fmt.Errorf("initialising store: %w", err)
	}

	return s.insertFile(id, name, alias, model.KindSingle, storePath)
}

// CreateBundle creates a bundle from files under basePath. Paths may be
// absolute or relative to basePath; when none are given every file under
// basePath is imported.
func (s *Service) CreateBundle(ctx context.Context, name, alias, basePath string, paths []string) (*model.ManagedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("bundle name is required: %w", ErrInvalidArgument)
	}
	base, err := s.fsmgr.Resolve(basePath)
	if err != nil {
		return nil, err
	}
	if !s.fsmgr.IsDir(base) {
		return nil, fmt.Errorf("base path %s is not a directory: %w", base, ErrInvalidArgument)
	}

	if len(paths) == 0 {
		paths, err = s.fsmgr.FindFiles(base)
		if err != nil {
			return nil, fmt.Errorf("finding bundle files: %w", err)
		}
	}
	entries, err := bundleEntries(base, paths)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("bundle has no files: %w", ErrInvalidArgument)
	}

	id := s.idgen.New()
	storePath := s.StorePath(id)
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if err := s.store.Init(ctx, storePath); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := s.copyFile(filepath.Join(base, filepath.FromSlash(entry)), storeEntryPath(storePath, entry)); err != nil {
				return err
			}
		}
		_, err := s.store.Commit(ctx, storePath, ".", "Initial bundle import")
		return err
	})
	if err != nil {
		s.discardStore(storePath)
		return nil, fmt.Errorf("importing bundle: %w", err)
	}

	s.logger.Info("bundle files imported", "id", id, "count", len(entries))
	return s.insertFile(id, name, alias, model.KindBundle, storePath)
}

// bundleEntries converts paths into unique slash-separated entries relative
// to base, rejecting anything outside base or inside a .git directory.
func bundleEntries(base string, paths []string) ([]string, error) {
	seen := make(map[string]bool, len(paths))
	var entries []string
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(base, filepath.FromSlash(p))
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, ErrInvalidArgument)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, fmt.Errorf("%s is outside %s: %w", p, base, ErrInvalidArgument)
		}
		for _, part := range strings.Split(rel, "/") {
			if part == ".git" {
				return nil, fmt.Errorf("%s is inside a .git directory: %w", p, ErrInvalidArgument)
			}
		}
		if !seen[rel] {
			seen[rel] = true
			entries = append(entries, rel)
		}
	}
	return entries, nil
}

func (s *Service) insertFile(id, name, alias string, kind model.FileKind, storePath string) (*model.ManagedFile, error) {
	now := s.clock.Now()
	f := &model.ManagedFile{
		ID:          id,
		Name:        name,
		Alias:       alias,
		Kind:        kind,
		UseAutoIcon: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.database.CreateFile(f); err != nil {
		s.discardStore(storePath)
		return nil, err
	}
	s.kinds.Add(id, kind)

	s.logger.Info("managed file created", "id", id, "name", name, "kind", string(kind))
	return s.findFile(id)
}

func (s *Service) discardStore(storePath string) {
	if err := s.fsmgr.RemoveAll(storePath); err != nil {
		s.logger.Warn("could not remove store", "path", storePath, "error", err)
	}
}

func (s *Service) GetFile(id string) (*model.ManagedFile, error) {
	return s.findFile(id)
}

// ListFiles returns every managed file, most recently updated first.
func (s *Service) ListFiles() ([]*model.ManagedFile, error) {
	return s.database.ListFiles()
}

// UpdateFile changes the display fields of a managed file.
func (s *Service) UpdateFile(id string, update model.FileUpdate) (*model.ManagedFile, error) {
	if _, err := s.findFile(id); err != nil {
		return nil, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("file name is required: %w", ErrInvalidArgument)
		}
		update.Name = &name
	}
	if err := s.database.UpdateFile(id, update, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.findFile(id)
}

// DeleteFile removes a managed file, its deployments and its version store.
// Deployed content is left on disk.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	f, err := s.findFile(id)
	if err != nil {
		return err
	}
	storePath := s.StorePath(id)

	deployments, err := s.database.ListDeployments(id)
	if err != nil {
		return err
	}
	entries, err := s.lockedEntries(ctx, storePath, f.Kind)
	if err != nil {
		s.logger.Warn("could not list bundle entries", "file", id, "error", err)
	}
	for _, d := range deployments {
		s.unwatch(d)
		if d.IsActive && d.AutoExclude {
			s.removeExclusions(d, f.Kind, entries)
		}
	}

	if err := s.database.DeleteFile(id); err != nil {
		return err
	}
	s.kinds.Remove(id)

	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		return s.fsmgr.RemoveAll(storePath)
	})
	if err != nil {
		return fmt.Errorf("removing store: %w", err)
	}

	s.logger.Info("managed file deleted", "id", id, "deployments", len(deployments))
	return nil
}

// ListBundleEntries lists the tracked paths of a managed file's store.
func (s *Service) ListBundleEntries(ctx context.Context, id string) ([]string, error) {
	f, err := s.findFile(id)
	if err != nil {
		return nil, err
	}
	storePath := s.StorePath(id)
	var entries []string
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		var err error
		entries, err = s.store.ListTrackedPaths(ctx, storePath, "")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing entries of %s: %w", f.ID, err)
	}
	return entries, nil
}

func (s *Service) unwatch(d *model.Deployment) {
	if err := s.watcher.Unwatch(d.ID); err != nil {
		s.logger.Warn("could not stop watching", "deployment", d.ID, "error", err)
	}
}

// removeExclusions is best-effort: the host repository may be gone.
func (s *Service) removeExclusions(d *model.Deployment, kind model.FileKind, entries []string) {
	for _, p := range exclusionPaths(d, kind, entries) {
		if err := s.exclude.RemoveExclusion(d.RepoPath, p, d.ID); err != nil {
			if errors.Is(err, ErrNotAGitRepo) {
				s.logger.Debug("repository gone, exclusion not removed", "deployment", d.ID, "repo", d.RepoPath)
				return
			}
			s.logger.Warn("could not remove exclusion", "deployment", d.ID, "path", p, "error", err)
		}
	}
}

func (s *Service) addExclusions(d *model.Deployment, kind model.FileKind, entries []string) error {
	for _, p := range exclusionPaths(d, kind, entries) {
		if err := s.exclude.AddExclusion(d.RepoPath, p, d.ID); err != nil {
			return fmt.Errorf("excluding %s: %w", p, err)
		}
	}
	return nil
}

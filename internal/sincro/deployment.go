package sincro

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"sincro-go/internal/model"
)

// DeploymentRequest describes a deployment to create.
type DeploymentRequest struct {
	FileID string
	// RepoPath is the root of the host repository.
	RepoPath string
	// FileRelativePath is where content lands, relative to RepoPath. For a
	// bundle it names the base directory.
	FileRelativePath string
	// SourceBranch or SourceCommit seed the new branch. SourceCommit wins
	// when both are set; with neither the store's current branch is used.
	SourceBranch string
	SourceCommit string
	AutoExclude  bool
}

// CreateDeployment allocates a branch for a new deployment and reconciles it
// with whatever already exists at the target: existing content is imported
// and committed, missing content is written out from the store.
func (s *Service) CreateDeployment(ctx context.Context, req DeploymentRequest) (*model.Deployment, error) {
	f, err := s.findFile(req.FileID)
	if err != nil {
		return nil, err
	}
	repoPath, err := s.fsmgr.Resolve(req.RepoPath)
	if err != nil {
		return nil, err
	}
	relPath, err := cleanRelativePath(req.FileRelativePath, f.Kind)
	if err != nil {
		return nil, err
	}
	if !s.exclude.IsVersionControlled(repoPath) {
		return nil, fmt.Errorf("%s: %w", repoPath, ErrNotAGitRepo)
	}
	if err := s.checkDuplicate(f.ID, "", repoPath, relPath); err != nil {
		return nil, err
	}

	id := s.idgen.New()
	d := &model.Deployment{
		ID:               id,
		FileID:           f.ID,
		RepoPath:         repoPath,
		FileRelativePath: relPath,
		BranchName:       BranchName(id),
		IsActive:         true,
		CreatedAt:        s.clock.Now(),
		AutoExclude:      req.AutoExclude,
	}

	startPoint := req.SourceBranch
	if req.SourceCommit != "" {
		startPoint = req.SourceCommit
	}

	storePath := s.StorePath(f.ID)
	var entries []string
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if req.SourceBranch != "" && req.SourceCommit == "" {
			if err := s.requireBranch(ctx, storePath, req.SourceBranch); err != nil {
				return err
			}
		}
		if err := s.store.CreateBranch(ctx, storePath, d.BranchName, startPoint); err != nil {
			return err
		}
		entries, err = s.trackedEntries(ctx, storePath, f.Kind)
		if err != nil {
			return err
		}
		hash, err := s.reconcile(ctx, storePath, d, f.Kind, entries)
		if err != nil {
			return err
		}
		if hash != "" {
			d.CurrentCommitHash = sql.NullString{String: hash, Valid: true}
			d.LastSyncedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("preparing deployment branch: %w", err)
	}

	if err := s.database.CreateDeployment(d); err != nil {
		return nil, err
	}

	if d.AutoExclude {
		if err := s.addExclusions(d, f.Kind, entries); err != nil {
			s.removeExclusions(d, f.Kind, entries)
			if derr := s.database.DeleteDeployment(d.ID); derr != nil {
				s.logger.Error("could not roll back deployment", "deployment", d.ID, "error", derr)
			}
			return nil, err
		}
	}

	if err := s.watcher.Watch(d.ID, d.TargetPath()); err != nil {
		s.logger.Warn("could not watch deployment", "deployment", d.ID, "path", d.TargetPath(), "error", err)
	}

	s.logger.Info("deployment created", "deployment", d.ID, "file", f.ID, "target", d.TargetPath(), "branch", d.BranchName)
	return s.findDeployment(d.ID)
}

// reconcile decides the direction of the initial copy per entry. It returns
// the hash of the import commit, or "" when nothing was imported.
func (s *Service) reconcile(ctx context.Context, storePath string, d *model.Deployment, kind model.FileKind, entries []string) (string, error) {
	imported := false
	for _, entry := range entries {
		target := deployedPath(d, kind, entry)
		src := storeEntryPath(storePath, entry)
		if s.fsmgr.Exists(target) {
			if s.fsmgr.IsDir(target) {
				return "", fmt.Errorf("%s is a directory: %w", target, ErrInvalidArgument)
			}
			if err := s.copyFile(target, src); err != nil {
				return "", err
			}
			imported = true
			continue
		}
		if !s.fsmgr.Exists(src) {
			continue
		}
		if err := s.copyFile(src, target); err != nil {
			return "", err
		}
	}
	if !imported {
		return "", nil
	}

	const message = "Import existing file content"
	var hash string
	var err error
	if kind == model.KindBundle {
		hash, err = s.store.CommitAll(ctx, storePath, message)
	} else {
		hash, err = s.store.Commit(ctx, storePath, ContentEntry, message)
	}
	if errors.Is(err, ErrNoChanges) {
		return "", nil
	}
	return hash, err
}

func (s *Service) requireBranch(ctx context.Context, storePath, branch string) error {
	branches, err := s.store.ListLocalBranches(ctx, storePath)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if b == branch {
			return nil
		}
	}
	return fmt.Errorf("source branch %s: %w", branch, ErrNotFound)
}

// cleanRelativePath normalises a deployment's relative path and rejects
// paths that escape the repository.
func cleanRelativePath(rel string, kind model.FileKind) (string, error) {
	if strings.TrimSpace(rel) == "" {
		if kind == model.KindBundle {
			return ".", nil
		}
		return "", fmt.Errorf("relative path is required: %w", ErrInvalidArgument)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("relative path %s is absolute: %w", rel, ErrInvalidArgument)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("relative path %s leaves the repository: %w", rel, ErrInvalidArgument)
	}
	if clean == "." && kind != model.KindBundle {
		return "", fmt.Errorf("relative path must name a file: %w", ErrInvalidArgument)
	}
	return clean, nil
}

// checkDuplicate fails when another active deployment of fileID targets the
// same location. exceptID is skipped.
func (s *Service) checkDuplicate(fileID, exceptID, repoPath, relPath string) error {
	existing, err := s.database.ListDeployments(fileID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == exceptID || !other.IsActive {
			continue
		}
		if filepath.Clean(other.RepoPath) == filepath.Clean(repoPath) &&
			filepath.Clean(other.FileRelativePath) == filepath.Clean(relPath) {
			return fmt.Errorf("deployment %s: %w", other.ID, ErrDuplicateDeployment)
		}
	}
	return nil
}

func (s *Service) GetDeployment(id string) (*model.Deployment, error) {
	return s.findDeployment(id)
}

// ListDeployments returns a file's deployments, newest first.
func (s *Service) ListDeployments(fileID string) ([]*model.Deployment, error) {
	if _, err := s.findFile(fileID); err != nil {
		return nil, err
	}
	return s.database.ListDeployments(fileID)
}

// Deactivate stops watching a deployment and removes its exclusion entries.
// History and the branch are kept.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return err
	}
	if !d.IsActive {
		return nil
	}

	// A failed entry lookup must leave the deployment active.
	var entries []string
	if d.AutoExclude {
		entries, err = s.lockedEntries(ctx, storePath, kind)
		if err != nil {
			return err
		}
	}
	if err := s.database.SetDeploymentActive(id, false); err != nil {
		return err
	}
	s.unwatch(d)
	if d.AutoExclude {
		s.removeExclusions(d, kind, entries)
	}

	s.logger.Info("deployment deactivated", "deployment", id)
	return nil
}

// Reactivate restores the exclusion entries and watch that Deactivate removed.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return err
	}
	if d.IsActive {
		return nil
	}
	if err := s.checkDuplicate(d.FileID, d.ID, d.RepoPath, d.FileRelativePath); err != nil {
		return err
	}

	if d.AutoExclude {
		entries, err := s.lockedEntries(ctx, storePath, kind)
		if err != nil {
			return err
		}
		if err := s.addExclusions(d, kind, entries); err != nil {
			s.removeExclusions(d, kind, entries)
			return err
		}
	}
	if err := s.database.SetDeploymentActive(id, true); err != nil {
		return err
	}

	if s.fsmgr.Exists(d.TargetPath()) {
		if err := s.watcher.Watch(d.ID, d.TargetPath()); err != nil {
			s.logger.Warn("could not watch deployment", "deployment", d.ID, "error", err)
		}
	}

	s.logger.Info("deployment reactivated", "deployment", id)
	return nil
}

// DeleteDeployment removes a deployment row. Its branch stays in the store.
// With deleteFromDisk the deployed files are removed too; for a bundle only
// tracked entries and directories left empty are removed.
func (s *Service) DeleteDeployment(ctx context.Context, id string, deleteFromDisk bool) error {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return err
	}

	s.unwatch(d)
	entries, err := s.lockedEntries(ctx, storePath, kind)
	if err != nil {
		s.logger.Warn("could not list bundle entries", "deployment", id, "error", err)
	}
	if d.AutoExclude {
		s.removeExclusions(d, kind, entries)
	}
	if deleteFromDisk {
		s.removeDeployed(d, kind, entries)
	}

	if err := s.database.DeleteDeployment(id); err != nil {
		return err
	}

	s.logger.Info("deployment deleted", "deployment", id, "from_disk", deleteFromDisk)
	return nil
}

func (s *Service) removeDeployed(d *model.Deployment, kind model.FileKind, entries []string) {
	for _, entry := range entries {
		target := deployedPath(d, kind, entry)
		if err := s.fsmgr.Remove(target); err != nil {
			s.logger.Warn("could not delete deployed file", "deployment", d.ID, "path", target, "error", err)
			continue
		}
		if kind != model.KindBundle {
			continue
		}
		// Prune directories the bundle leaves empty below its base directory.
		base := filepath.Clean(d.TargetPath())
		for dir := filepath.Dir(target); dir != base && strings.HasPrefix(dir, base+string(filepath.Separator)); dir = filepath.Dir(dir) {
			if s.fsmgr.Remove(dir) != nil {
				break
			}
		}
	}
}

// Sync copies the deployed content into the store's working copy without
// committing and records the sync time.
func (s *Service) Sync(ctx context.Context, id string) error {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return err
	}
	if err := s.requireDeployed(d, kind); err != nil {
		return err
	}

	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if err := s.switchTo(ctx, storePath, d.BranchName); err != nil {
			return err
		}
		entries, err := s.trackedEntries(ctx, storePath, kind)
		if err != nil {
			return err
		}
		return s.importDeployed(storePath, d, kind, entries)
	})
	if err != nil {
		return fmt.Errorf("syncing deployment: %w", err)
	}
	return s.database.MarkDeploymentSynced(id, s.clock.Now())
}

// UpdateDescription sets or clears a deployment's description.
func (s *Service) UpdateDescription(id string, description *string) (*model.Deployment, error) {
	if _, err := s.findDeployment(id); err != nil {
		return nil, err
	}
	if description != nil && strings.TrimSpace(*description) == "" {
		description = nil
	}
	if err := s.database.SetDeploymentDescription(id, description); err != nil {
		return nil, err
	}
	return s.findDeployment(id)
}

// CheckExcludeStatus reports whether every path of the deployment is
// excluded in its host repository.
func (s *Service) CheckExcludeStatus(ctx context.Context, id string) (bool, error) {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return false, err
	}
	entries, err := s.lockedEntries(ctx, storePath, kind)
	if err != nil {
		return false, err
	}

	paths := exclusionPaths(d, kind, entries)
	for _, p := range paths {
		excluded, err := s.exclude.IsExcluded(d.RepoPath, p)
		if err != nil {
			return false, err
		}
		if !excluded {
			return false, nil
		}
	}
	return len(paths) > 0, nil
}

// CheckFileExists reports whether the deployment's target is present.
func (s *Service) CheckFileExists(id string) (bool, error) {
	d, err := s.findDeployment(id)
	if err != nil {
		return false, err
	}
	return s.fsmgr.Exists(d.TargetPath()), nil
}

// IsGloballyExcluded reports whether relPath is ignored by the user's global
// git excludes file.
func (s *Service) IsGloballyExcluded(relPath string) (bool, error) {
	return s.exclude.IsGloballyExcluded(relPath)
}

// WatchActive installs a watch for every active deployment whose target
// exists and returns how many were installed. Used once at startup.
func (s *Service) WatchActive() (int, error) {
	deployments, err := s.database.ListActiveDeployments()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range deployments {
		if !s.fsmgr.Exists(d.TargetPath()) {
			s.logger.Debug("not watching missing target", "deployment", d.ID, "path", d.TargetPath())
			continue
		}
		if err := s.watcher.Watch(d.ID, d.TargetPath()); err != nil {
			s.logger.Warn("could not watch deployment", "deployment", d.ID, "path", d.TargetPath(), "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Stats counts deployments and checks every active one for drift.
// Deployments that cannot be checked are not counted.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	total, active, err := s.database.CountDeployments()
	if err != nil {
		return nil, err
	}
	deployments, err := s.database.ListActiveDeployments()
	if err != nil {
		return nil, err
	}

	stats := &model.Stats{Active: active, Total: total, FileIDsWithChanges: []string{}}
	seen := make(map[string]bool)
	for _, d := range deployments {
		changed, err := s.CheckForChanges(ctx, d.ID)
		if err != nil {
			s.logger.Debug("skipping deployment in stats", "deployment", d.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		stats.PendingChanges++
		if !seen[d.FileID] {
			seen[d.FileID] = true
			stats.FileIDsWithChanges = append(stats.FileIDsWithChanges, d.FileID)
		}
	}
	sort.Strings(stats.FileIDsWithChanges)
	return stats, nil
}

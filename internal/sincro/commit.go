package sincro

import (
	"context"
	"fmt"
	"strings"

	"sincro-go/internal/model"
)

// Commit captures the deployed content on the deployment's branch. When the
// content matches the branch head it returns ErrNoChanges and leaves the
// deployment untouched. A non-empty tag is created as branchName/tag.
func (s *Service) Commit(ctx context.Context, id, message, tag string) (*model.CommitLogEntry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("commit message is required: %w", ErrInvalidArgument)
	}
	tag = strings.TrimSpace(tag)

	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return nil, err
	}

	entry := &model.CommitLogEntry{Message: message}
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if err := s.store.CheckoutClean(ctx, storePath, d.BranchName); err != nil {
			return err
		}
		if tag != "" {
			entry.Tag = d.BranchName + "/" + tag
			if err := s.store.CheckTag(ctx, storePath, entry.Tag); err != nil {
				return err
			}
		}
		entries, err := s.trackedEntries(ctx, storePath, kind)
		if err != nil {
			return err
		}
		if err := s.importDeployed(storePath, d, kind, entries); err != nil {
			return err
		}

		var hash string
		if kind == model.KindBundle {
			hash, err = s.store.CommitAll(ctx, storePath, message)
		} else {
			hash, err = s.store.Commit(ctx, storePath, ContentEntry, message)
		}
		if err != nil {
			return err
		}
		entry.Hash = hash
		entry.Date = s.clock.Now()
		if err := s.database.RecordDeploymentCommit(id, hash, entry.Date); err != nil {
			return err
		}
		if entry.Tag != "" {
			if err := s.store.Tag(ctx, storePath, entry.Tag); err != nil {
				return fmt.Errorf("committed %s but tagging failed: %w", hash, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("committed", "deployment", id, "hash", entry.Hash, "tag", entry.Tag)
	return entry, nil
}

// CheckoutToCommit writes the content at hash to the deployment and to the
// store's working copy. The branch head does not move.
func (s *Service) CheckoutToCommit(ctx context.Context, id, hash string) error {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return fmt.Errorf("commit hash is required: %w", ErrInvalidArgument)
	}
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return err
	}

	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		entries := []string{ContentEntry}
		if kind == model.KindBundle {
			var err error
			entries, err = s.store.ListTrackedPaths(ctx, storePath, hash)
			if err != nil {
				return err
			}
		}
		if err := s.store.CheckoutClean(ctx, storePath, d.BranchName); err != nil {
			return err
		}

		for _, entry := range entries {
			data, err := s.store.ReadBlob(ctx, storePath, hash, entry)
			if err != nil {
				return err
			}
			if err := s.fsmgr.WriteFile(deployedPath(d, kind, entry), data); err != nil {
				return err
			}
			if err := s.fsmgr.WriteFile(storeEntryPath(storePath, entry), data); err != nil {
				return err
			}
		}
		return s.database.SetDeploymentCurrentCommit(id, hash)
	})
	if err != nil {
		return fmt.Errorf("checking out %s: %w", hash, err)
	}

	s.logger.Info("checked out commit", "deployment", id, "hash", hash)
	return nil
}

// CheckForChanges reports whether the deployed content differs from the
// head of the deployment's branch. The store is left exactly as it was
// found. A deployment whose target does not exist reports no changes.
func (s *Service) CheckForChanges(ctx context.Context, id string) (bool, error) {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return false, err
	}
	if !s.fsmgr.Exists(d.TargetPath()) {
		return false, nil
	}

	var changed bool
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		return s.onBranch(ctx, storePath, d.BranchName, func() error {
			return s.withOverlay(ctx, storePath, d, kind, func() (err error) {
				changed, err = s.store.HasUncommittedChanges(ctx, storePath)
				return err
			})
		})
	})
	if err != nil {
		return false, fmt.Errorf("checking for changes: %w", err)
	}
	return changed, nil
}

// withOverlay runs fn while the store's working copy mirrors the deployment,
// then restores the working copy. The caller must hold exclusive access with
// the deployment's branch checked out.
func (s *Service) withOverlay(ctx context.Context, storePath string, d *model.Deployment, kind model.FileKind, fn func() error) (err error) {
	entries, err := s.trackedEntries(ctx, storePath, kind)
	if err != nil {
		return err
	}
	snap := s.snapshot(storePath, entries)
	defer func() {
		if rerr := s.restore(storePath, entries, snap); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if err := s.overlay(storePath, d, kind, entries); err != nil {
		return err
	}
	return fn()
}

package sincro

import (
	"context"
	"fmt"
	"strings"

	"sincro-go/internal/model"
)

const (
	unreadableContent = "[Could not read file]"
	missingContent    = "[File not found]"
)

// ListCommits returns the deployment branch's history, newest first.
func (s *Service) ListCommits(ctx context.Context, id string) ([]*model.CommitLogEntry, error) {
	d, _, storePath, err := s.deploymentContext(id)
	if err != nil {
		return nil, err
	}
	var entries []*model.CommitLogEntry
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		var err error
		entries, err = s.store.Log(ctx, storePath, d.BranchName)
		return err
	})
	return entries, err
}

// GetDiff diffs hash1 against hash2, or against its parent when hash2 is "".
func (s *Service) GetDiff(ctx context.Context, id, hash1, hash2 string) (string, error) {
	if hash1 == "" {
		return "", fmt.Errorf("commit hash is required: %w", ErrInvalidArgument)
	}
	_, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return "", err
	}
	var diff string
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		var err error
		diff, err = s.store.Diff(ctx, storePath, hash1, hash2, diffFilter(kind)...)
		return err
	})
	return diff, err
}

// GetDiffWorkingTree diffs the deployed content against the branch head
// without changing the store.
func (s *Service) GetDiffWorkingTree(ctx context.Context, id string) (string, error) {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return "", err
	}
	if !s.fsmgr.Exists(d.TargetPath()) {
		return "", nil
	}

	var diff string
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		return s.onBranch(ctx, storePath, d.BranchName, func() error {
			return s.withOverlay(ctx, storePath, d, kind, func() (err error) {
				diff, err = s.store.DiffWorkingTree(ctx, storePath, diffFilter(kind)...)
				return err
			})
		})
	})
	return diff, err
}

func diffFilter(kind model.FileKind) []string {
	if kind == model.KindBundle {
		return nil
	}
	return []string{ContentEntry}
}

// GetFileAtRevision returns the content at hash. Bundle entries are joined,
// each under a "=== path ===" header.
func (s *Service) GetFileAtRevision(ctx context.Context, id, hash string) (string, error) {
	files, err := s.GetFilesAtRevision(ctx, id, hash)
	if err != nil {
		return "", err
	}
	d, kind, _, err := s.deploymentContext(id)
	if err != nil {
		return "", err
	}
	if kind != model.KindBundle {
		if len(files) == 0 {
			return "", fmt.Errorf("no content for %s at %s", d.ID, hash)
		}
		return files[0].Content, nil
	}

	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, "=== "+f.Path+" ===\n"+f.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// GetFilesAtRevision returns every path's content at hash. Bundle entries
// that cannot be read carry a placeholder; for a single file a read failure
// is an error.
func (s *Service) GetFilesAtRevision(ctx context.Context, id, hash string) ([]model.FileContent, error) {
	if hash == "" {
		return nil, fmt.Errorf("commit hash is required: %w", ErrInvalidArgument)
	}
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return nil, err
	}

	var files []model.FileContent
	err = s.store.WithExclusiveAccess(ctx, storePath, func() error {
		if kind != model.KindBundle {
			data, err := s.store.ReadBlob(ctx, storePath, hash, ContentEntry)
			if err != nil {
				return err
			}
			files = []model.FileContent{{Path: d.FileRelativePath, Content: string(data)}}
			return nil
		}

		entries, err := s.store.ListTrackedPaths(ctx, storePath, hash)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := s.store.ReadBlob(ctx, storePath, hash, entry)
			if err != nil {
				files = append(files, model.FileContent{Path: entry, Content: unreadableContent})
				continue
			}
			files = append(files, model.FileContent{Path: entry, Content: string(data)})
		}
		return nil
	})
	return files, err
}

// GetCurrentFiles reads what is deployed right now.
func (s *Service) GetCurrentFiles(ctx context.Context, id string) ([]model.FileContent, error) {
	d, kind, storePath, err := s.deploymentContext(id)
	if err != nil {
		return nil, err
	}
	entries, err := s.lockedEntries(ctx, storePath, kind)
	if err != nil {
		return nil, err
	}

	files := make([]model.FileContent, 0, len(entries))
	for _, entry := range entries {
		path := entry
		if kind != model.KindBundle {
			path = d.FileRelativePath
		}
		target := deployedPath(d, kind, entry)
		if !s.fsmgr.Exists(target) {
			files = append(files, model.FileContent{Path: path, Content: missingContent, Missing: true})
			continue
		}
		data, err := s.fsmgr.ReadFile(target)
		if err != nil {
			files = append(files, model.FileContent{Path: path, Content: unreadableContent})
			continue
		}
		files = append(files, model.FileContent{Path: path, Content: string(data)})
	}
	return files, nil
}

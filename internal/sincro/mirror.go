package sincro

import (
	"fmt"
	"path"
	"path/filepath"

	"sincro-go/internal/model"
)

// deployedPath maps a store entry to its location at the deployment. A
// single file's entry maps to the target itself; bundle entries map under
// the target directory.
func deployedPath(d *model.Deployment, kind model.FileKind, entry string) string {
	if kind != model.KindBundle {
		return d.TargetPath()
	}
	return filepath.Join(d.TargetPath(), filepath.FromSlash(entry))
}

func storeEntryPath(storePath, entry string) string {
	return filepath.Join(storePath, filepath.FromSlash(entry))
}

// requireDeployed fails with ErrMissingDeployedContent when the deployment's
// target is absent.
func (s *Service) requireDeployed(d *model.Deployment, kind model.FileKind) error {
	target := d.TargetPath()
	if kind == model.KindBundle {
		if !s.fsmgr.IsDir(target) {
			return fmt.Errorf("deployed directory %s: %w", target, ErrMissingDeployedContent)
		}
		return nil
	}
	if !s.fsmgr.Exists(target) || s.fsmgr.IsDir(target) {
		return fmt.Errorf("deployed file %s: %w", target, ErrMissingDeployedContent)
	}
	return nil
}

// importDeployed copies the deployment's content into the store's working
// copy. Bundle entries missing at the deployment are skipped.
func (s *Service) importDeployed(storePath string, d *model.Deployment, kind model.FileKind, entries []string) error {
	if err := s.requireDeployed(d, kind); err != nil {
		return err
	}
	for _, entry := range entries {
		src := deployedPath(d, kind, entry)
		if !s.fsmgr.Exists(src) {
			s.logger.Debug("skipping missing bundle entry", "deployment", d.ID, "path", entry)
			continue
		}
		if err := s.copyFile(src, storeEntryPath(storePath, entry)); err != nil {
			return err
		}
	}
	return nil
}

// exportToDeployed writes the store's working copy out to the deployment.
func (s *Service) exportToDeployed(storePath string, d *model.Deployment, kind model.FileKind, entries []string) error {
	for _, entry := range entries {
		src := storeEntryPath(storePath, entry)
		if !s.fsmgr.Exists(src) {
			continue
		}
		if err := s.copyFile(src, deployedPath(d, kind, entry)); err != nil {
			return err
		}
	}
	return nil
}

// overlay makes the store's working copy reflect the deployment exactly for
// the given entries. A bundle entry missing at the deployment is removed from
// the working copy so that it shows up as a change.
func (s *Service) overlay(storePath string, d *model.Deployment, kind model.FileKind, entries []string) error {
	for _, entry := range entries {
		src := deployedPath(d, kind, entry)
		dst := storeEntryPath(storePath, entry)
		if !s.fsmgr.Exists(src) {
			if err := s.fsmgr.Remove(dst); err != nil {
				return err
			}
			continue
		}
		if err := s.copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// snapshot reads the working copy content of entries. Entries that cannot be
// read are left out and treated as absent by restore.
func (s *Service) snapshot(storePath string, entries []string) map[string][]byte {
	snap := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		data, err := s.fsmgr.ReadFile(storeEntryPath(storePath, entry))
		if err != nil {
			continue
		}
		snap[entry] = data
	}
	return snap
}

// restore puts the working copy back to a snapshot taken over entries.
func (s *Service) restore(storePath string, entries []string, snap map[string][]byte) error {
	for _, entry := range entries {
		dst := storeEntryPath(storePath, entry)
		data, ok := snap[entry]
		if !ok {
			if err := s.fsmgr.Remove(dst); err != nil {
				return fmt.Errorf("restoring %s: %w", entry, err)
			}
			continue
		}
		if err := s.fsmgr.WriteFile(dst, data); err != nil {
			return fmt.Errorf("restoring %s: %w", entry, err)
		}
	}
	return nil
}

func (s *Service) copyFile(src, dst string) error {
	data, err := s.fsmgr.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := s.fsmgr.WriteFile(dst, data); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// exclusionPaths lists the paths, relative to the repository, that keep a
// deployment out of the host repository's version control.
func exclusionPaths(d *model.Deployment, kind model.FileKind, entries []string) []string {
	rel := filepath.ToSlash(filepath.Clean(d.FileRelativePath))
	if kind != model.KindBundle {
		return []string{rel}
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if rel == "." {
			paths = append(paths, entry)
			continue
		}
		paths = append(paths, path.Join(rel, entry))
	}
	return paths
}

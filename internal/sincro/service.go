package sincro

import (
	"context"
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"sincro-go/internal/model"
)

const (
	// ContentEntry is the one tracked path in a single file's store.
	ContentEntry = "content"

	branchPrefix  = "deploy-"
	kindCacheSize = 256
)

// Service is the orchestration layer for managed files, their deployments
// and the history kept for each deployment.
type Service struct {
	database Database
	store    VersionStore
	exclude  ExclusionOracle
	watcher  Watcher
	fsmgr    FilesystemManager
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	filesDir string

	// kinds caches ManagedFile kinds, which never change after creation.
	kinds *lru.Cache[string, model.FileKind]
}

// NewService creates a Service. Version stores live under filesDir, one
// directory per managed file id.
func NewService(database Database, store VersionStore, exclude ExclusionOracle, watcher Watcher, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator, filesDir string) *Service {
	kinds, err := lru.New[string, model.FileKind](kindCacheSize)
	if err != nil {
		panic(err)
	}
	return &Service{
		database: database,
		store:    store,
		exclude:  exclude,
		watcher:  watcher,
		fsmgr:    fsmgr,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		filesDir: filesDir,
		kinds:    kinds,
	}
}

// BranchName derives a deployment's branch from its id.
func BranchName(deploymentID string) string {
	short := deploymentID
	if len(short) > 8 {
		short = short[:8]
	}
	return branchPrefix + short
}

// StorePath returns the version store directory for a managed file.
func (s *Service) StorePath(fileID string) string {
	return filepath.Join(s.filesDir, fileID)
}

func (s *Service) findFile(id string) (*model.ManagedFile, error) {
	f, err := s.database.FindFile(id)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	s.kinds.Add(f.ID, f.Kind)
	return f, nil
}

func (s *Service) findDeployment(id string) (*model.Deployment, error) {
	d, err := s.database.FindDeployment(id)
	if err != nil {
		return nil, fmt.Errorf("finding deployment: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return d, nil
}

func (s *Service) fileKind(fileID string) (model.FileKind, error) {
	if kind, ok := s.kinds.Get(fileID); ok {
		return kind, nil
	}
	f, err := s.findFile(fileID)
	if err != nil {
		return "", err
	}
	return f.Kind, nil
}

// deploymentContext loads a deployment with its file kind and store path.
func (s *Service) deploymentContext(id string) (*model.Deployment, model.FileKind, string, error) {
	d, err := s.findDeployment(id)
	if err != nil {
		return nil, "", "", err
	}
	kind, err := s.fileKind(d.FileID)
	if err != nil {
		return nil, "", "", err
	}
	return d, kind, s.StorePath(d.FileID), nil
}

// trackedEntries returns the store paths that make up a file's content.
// The caller must hold the store's exclusive access.
func (s *Service) trackedEntries(ctx context.Context, storePath string, kind model.FileKind) ([]string, error) {
	if kind != model.KindBundle {
		return []string{ContentEntry}, nil
	}
	paths, err := s.store.ListTrackedPaths(ctx, storePath, "")
	if err != nil {
		return nil, fmt.Errorf("listing bundle entries: %w", err)
	}
	return paths, nil
}

// lockedEntries is trackedEntries for callers outside the store's queue.
func (s *Service) lockedEntries(ctx context.Context, storePath string, kind model.FileKind) ([]string, error) {
	if kind != model.KindBundle {
		return []string{ContentEntry}, nil
	}
	var paths []string
	err := s.store.WithExclusiveAccess(ctx, storePath, func() error {
		var err error
		paths, err = s.trackedEntries(ctx, storePath, kind)
		return err
	})
	return paths, err
}

// onBranch runs fn with branch checked out and then puts the store back the
// way it was, including uncommitted edits on the previous branch. The caller
// must hold the store's exclusive access.
func (s *Service) onBranch(ctx context.Context, storePath, branch string, fn func() error) (err error) {
	prev, err := s.store.CurrentBranch(ctx, storePath)
	if err != nil {
		return err
	}
	if prev == branch {
		return fn()
	}

	prevPaths, err := s.store.ListTrackedPaths(ctx, storePath, "")
	if err != nil {
		return err
	}
	prevSnap := s.snapshot(storePath, prevPaths)

	if err := s.store.CheckoutClean(ctx, storePath, branch); err != nil {
		return err
	}
	defer func() {
		if cerr := s.store.CheckoutClean(ctx, storePath, prev); cerr != nil {
			if err == nil {
				err = fmt.Errorf("restoring branch %s: %w", prev, cerr)
			}
			return
		}
		if rerr := s.restore(storePath, prevPaths, prevSnap); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return fn()
}

// switchTo checks out branch unless it is already current. Uncommitted edits
// on another branch are discarded.
func (s *Service) switchTo(ctx context.Context, storePath, branch string) error {
	current, err := s.store.CurrentBranch(ctx, storePath)
	if err != nil {
		return err
	}
	if current == branch {
		return nil
	}
	return s.store.CheckoutClean(ctx, storePath, branch)
}

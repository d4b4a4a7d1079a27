package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sincro-go/internal/config"
	"sincro-go/internal/database"
	"sincro-go/internal/exclude"
	"sincro-go/internal/fs"
	"sincro-go/internal/gitstore"
	"sincro-go/internal/metrics"
	"sincro-go/internal/sincro"
	"sincro-go/internal/watcher"
)

// SincroApp is the application layer between the CLI or API and the Service.
// It constructs all dependencies from config, runs the watch-event loop and
// manages the DB lifecycle on Close.
type SincroApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	watcher *watcher.FSWatcher // nil when watching is disabled
	service *sincro.Service
	logger  *slog.Logger
	logFile *os.File
	op      *Operation

	mu    sync.Mutex
	drift map[string]bool
	done  chan struct{}
}

// NewSincroApp creates a fully wired SincroApp from the given config.
// operation names the CLI command being run (e.g. "commit", "serve").
// The caller must call Close when done.
func NewSincroApp(cfg *config.Config, operation string) (*SincroApp, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("data_dir is not configured")
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger = logger.With("op", op.ID)
	log := &slogAdapter{l: logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	a := &SincroApp{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		logFile: logFile,
		op:      op,
		drift:   make(map[string]bool),
	}

	// Extra patterns skipped when importing a bundle from a directory.
	ignorePatterns, err := fs.ParseIgnoreFile(filepath.Join(cfg.DataDir, "bundleignore"))
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, err
	}

	var w sincro.Watcher = disabledWatcher{}
	if cfg.Watcher.Enabled {
		a.watcher = watcher.NewFSWatcher(time.Duration(cfg.Watcher.SettleMS)*time.Millisecond, log)
		w = a.watcher
	}

	a.service = sincro.NewService(
		db,
		gitstore.NewShellStore(),
		exclude.NewGitExcludeManager(cfg.Exclude.GlobalExcludesFile, log),
		w,
		fs.NewOSFilesystemManager(ignorePatterns),
		log,
		sincro.RealClock{},
		sincro.UUIDGenerator{},
		cfg.FilesDir(),
	)

	logger.Info("operation started", "name", operation)
	return a, nil
}

func (a *SincroApp) Service() *sincro.Service { return a.service }

func (a *SincroApp) Config() *config.Config { return a.cfg }

func (a *SincroApp) Logger() *slog.Logger { return a.logger }

// Fail marks the current operation as failed; Close logs the outcome.
func (a *SincroApp) Fail() { a.op.Fail() }

// Start re-installs watches for active deployments and begins turning watch
// events into drift checks. It is a no-op when watching is disabled. The
// loop ends when ctx is cancelled or the app is closed.
func (a *SincroApp) Start(ctx context.Context) error {
	if a.watcher == nil {
		return nil
	}
	n, err := a.service.WatchActive()
	if err != nil {
		return fmt.Errorf("restoring watches: %w", err)
	}
	metrics.SetActiveWatches(a.watcher.Len())
	a.logger.Info("watches restored", "count", n)

	a.done = make(chan struct{})
	go a.handleEvents(ctx)
	return nil
}

func (a *SincroApp) handleEvents(ctx context.Context) {
	defer close(a.done)
	events := a.watcher.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.checkDrift(ctx, ev)
		}
	}
}

func (a *SincroApp) checkDrift(ctx context.Context, ev watcher.Event) {
	metrics.RecordWatchEvent(string(ev.Kind))
	metrics.SetActiveWatches(a.watcher.Len())

	start := time.Now()
	changed, err := a.service.CheckForChanges(ctx, ev.DeploymentID)
	metrics.RecordDriftCheck("watch", changed, err, time.Since(start))
	if err != nil {
		if errors.Is(err, sincro.ErrNotFound) {
			_ = a.watcher.Unwatch(ev.DeploymentID)
		}
		a.logger.Warn("drift check failed", "deployment", ev.DeploymentID, "error", err)
		return
	}

	a.mu.Lock()
	a.drift[ev.DeploymentID] = changed
	a.mu.Unlock()
	a.logger.Info("drift checked", "deployment", ev.DeploymentID, "kind", string(ev.Kind), "changed", changed)
}

// LastDrift returns the result of the most recent watch-triggered drift check
// for a deployment. ok is false when no event has been handled for it yet.
func (a *SincroApp) LastDrift(deploymentID string) (changed, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed, ok = a.drift[deploymentID]
	return changed, ok
}

// Close stops the watcher, waits for the event loop, and closes the database
// and log file.
func (a *SincroApp) Close() error {
	var firstErr error

	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			firstErr = fmt.Errorf("closing watcher: %w", err)
		}
		if a.done != nil {
			<-a.done
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	a.logger.Info("operation finished", "name", a.op.Name, "status", a.op.Status)
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// disabledWatcher satisfies sincro.Watcher when [watcher] enabled = false.
type disabledWatcher struct{}

func (disabledWatcher) Watch(string, string) error { return nil }
func (disabledWatcher) Unwatch(string) error       { return nil }
func (disabledWatcher) IsWatching(string) bool     { return false }

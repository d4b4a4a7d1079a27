package sincro

import (
	"context"

	"sincro-go/internal/model"
)

// VersionStore is a serialized facade over per-file git repositories. Every
// method except WithExclusiveAccess expects the caller to already hold the
// store's exclusive access; none of them re-enter it.
type VersionStore interface {
	// WithExclusiveAccess runs fn while no other caller holds the same
	// storePath. Callers for one path are admitted in FIFO order. The slot is
	// released when fn returns, whatever the outcome.
	WithExclusiveAccess(ctx context.Context, storePath string, fn func() error) error

	// Init creates a new store. It fails with ErrStoreExists if one is present.
	Init(ctx context.Context, storePath string) error
	// CreateBranch creates and checks out name at startPoint, or at the current
	// branch when startPoint is empty. Working-copy edits are discarded.
	CreateBranch(ctx context.Context, storePath, name, startPoint string) error
	// Checkout switches branch or revision, carrying working-copy edits.
	Checkout(ctx context.Context, storePath, ref string) error
	// CheckoutClean switches branch or revision, discarding working-copy edits.
	CheckoutClean(ctx context.Context, storePath, ref string) error
	// Commit stages pathSpec and commits it. ErrNoChanges when nothing is staged.
	Commit(ctx context.Context, storePath, pathSpec, message string) (string, error)
	// CommitAll stages modifications to tracked paths only and commits them.
	CommitAll(ctx context.Context, storePath, message string) (string, error)
	// Tag creates a lightweight tag at HEAD.
	Tag(ctx context.Context, storePath, name string) error
	// CheckTag fails with ErrInvalidArgument for a malformed or existing tag.
	CheckTag(ctx context.Context, storePath, name string) error
	// Log lists a branch's commits newest first with tags attached.
	Log(ctx context.Context, storePath, branch string) ([]*model.CommitLogEntry, error)
	// Diff produces a unified diff between rev1 and rev2, or between rev1 and
	// its parent when rev2 is empty.
	Diff(ctx context.Context, storePath, rev1, rev2 string, paths ...string) (string, error)
	// DiffWorkingTree diffs the working copy against HEAD.
	DiffWorkingTree(ctx context.Context, storePath string, paths ...string) (string, error)
	// ListTrackedPaths lists tracked paths at revision, or in the index when empty.
	ListTrackedPaths(ctx context.Context, storePath, revision string) ([]string, error)
	ReadBlob(ctx context.Context, storePath, revision, path string) ([]byte, error)
	ListLocalBranches(ctx context.Context, storePath string) ([]string, error)
	// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
	CurrentBranch(ctx context.Context, storePath string) (string, error)
	HasUncommittedChanges(ctx context.Context, storePath string) (bool, error)
}

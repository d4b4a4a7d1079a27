package sincro

import "errors"

var (
	// ErrNotFound is returned when a managed file, deployment or tag row is absent.
	ErrNotFound = errors.New("not found")

	// ErrNotAGitRepo is returned when a deployment target is not inside a git repository.
	ErrNotAGitRepo = errors.New("not a git repository")

	// ErrNoChanges is the expected outcome of a commit when the deployed
	// content matches the branch head. Callers report it as "nothing to commit".
	ErrNoChanges = errors.New("nothing to commit")

	// ErrMissingDeployedContent is returned when a single file's deployed copy
	// is absent during a mirror.
	ErrMissingDeployedContent = errors.New("deployed content does not exist")

	// ErrStoreUnavailable is returned when a version store directory is
	// missing or is not a repository.
	ErrStoreUnavailable = errors.New("version store unavailable")

	// ErrStoreExists is returned by store initialisation over an existing store.
	ErrStoreExists = errors.New("version store already exists")

	// ErrDuplicateDeployment is returned when an active deployment of the same
	// file already targets the same location.
	ErrDuplicateDeployment = errors.New("an active deployment already targets this path")

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

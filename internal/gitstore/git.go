// Package gitstore implements the per-file version store on top of the git
// command line. Each managed file owns one repository; each deployment owns
// one branch in it.
package gitstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"sincro-go/internal/model"
	"sincro-go/internal/sincro"
)

const (
	// DefaultBranch is the branch a new store starts on.
	DefaultBranch = "main"

	committerName  = "Sincro"
	committerEmail = "sincro@local"

	// emptyTree is git's well-known hash of the empty tree object.
	emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
)

// ShellStore implements sincro.VersionStore by shelling out to git.
type ShellStore struct {
	queue  *KeyedQueue
	gitBin string
}

var _ sincro.VersionStore = (*ShellStore)(nil)

// NewShellStore creates a version store that uses the git binary on PATH.
func NewShellStore() *ShellStore {
	return &ShellStore{queue: NewKeyedQueue(), gitBin: "git"}
}

func (s *ShellStore) WithExclusiveAccess(ctx context.Context, storePath string, fn func() error) error {
	return s.queue.Do(ctx, filepath.Clean(storePath), fn)
}

func (s *ShellStore) Init(ctx context.Context, storePath string) error {
	if _, err := os.Stat(filepath.Join(storePath, ".git")); err == nil {
		return fmt.Errorf("%s: %w", storePath, sincro.ErrStoreExists)
	}
	if err := os.MkdirAll(storePath, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	steps := [][]string{
		{"init", "-q"},
		{"symbolic-ref", "HEAD", "refs/heads/" + DefaultBranch},
		{"config", "user.name", committerName},
		{"config", "user.email", committerEmail},
		{"config", "core.longpaths", "true"},
		{"config", "core.autocrlf", "false"},
		{"config", "commit.gpgsign", "false"},
		{"config", "tag.gpgsign", "false"},
	}
	for _, args := range steps {
		if _, err := s.run(ctx, storePath, args...); err != nil {
			return fmt.Errorf("git %s failed: %w", args[0], err)
		}
	}
	return nil
}

func (s *ShellStore) CreateBranch(ctx context.Context, storePath, name, startPoint string) error {
	if err := s.ensureStore(storePath); err != nil {
		return err
	}
	args := []string{"checkout", "-q", "-f", "-b", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if _, err := s.run(ctx, storePath, args...); err != nil {
		return fmt.Errorf("git checkout -b %s failed: %w", name, err)
	}
	return nil
}

func (s *ShellStore) Checkout(ctx context.Context, storePath, ref string) error {
	return s.checkout(ctx, storePath, ref, false)
}

func (s *ShellStore) CheckoutClean(ctx context.Context, storePath, ref string) error {
	return s.checkout(ctx, storePath, ref, true)
}

func (s *ShellStore) checkout(ctx context.Context, storePath, ref string, force bool) error {
	if err := s.ensureStore(storePath); err != nil {
		return err
	}
	args := []string{"checkout", "-q"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, ref, "--")
	if _, err := s.run(ctx, storePath, args...); err != nil {
		return fmt.Errorf("git checkout %s failed: %w", ref, err)
	}
	return nil
}

func (s *ShellStore) Commit(ctx context.Context, storePath, pathSpec, message string) (string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return "", err
	}
	if _, err := s.run(ctx, storePath, "add", "-A", "--", pathSpec); err != nil {
		return "", fmt.Errorf("git add failed: %w", err)
	}
	return s.commitStaged(ctx, storePath, message)
}

func (s *ShellStore) CommitAll(ctx context.Context, storePath, message string) (string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return "", err
	}
	// -u stages tracked paths only, so the tracked set never grows here.
	if _, err := s.run(ctx, storePath, "add", "-u"); err != nil {
		return "", fmt.Errorf("git add failed: %w", err)
	}
	return s.commitStaged(ctx, storePath, message)
}

func (s *ShellStore) commitStaged(ctx context.Context, storePath, message string) (string, error) {
	staged, err := s.hasStagedChanges(ctx, storePath)
	if err != nil {
		return "", err
	}
	if !staged {
		return "", sincro.ErrNoChanges
	}

	if _, err := s.run(ctx, storePath, "commit", "-q", "--no-verify", "-m", message); err != nil {
		return "", fmt.Errorf("git commit failed: %w", err)
	}
	return s.revParse(ctx, storePath, "HEAD")
}

func (s *ShellStore) hasStagedChanges(ctx context.Context, storePath string) (bool, error) {
	// HEAD is unborn before the first commit; anything in the index counts.
	if _, err := s.revParse(ctx, storePath, "HEAD"); err != nil {
		out, err := s.run(ctx, storePath, "ls-files")
		if err != nil {
			return false, fmt.Errorf("git ls-files failed: %w", err)
		}
		return len(bytes.TrimSpace(out)) > 0, nil
	}

	_, err := s.run(ctx, storePath, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached failed: %w", err)
}

func (s *ShellStore) Tag(ctx context.Context, storePath, name string) error {
	if err := s.ensureStore(storePath); err != nil {
		return err
	}
	if _, err := s.run(ctx, storePath, "tag", name); err != nil {
		return fmt.Errorf("git tag %s failed: %w", name, err)
	}
	return nil
}

// CheckTag fails with ErrInvalidArgument when name is not a valid tag name
// or a tag of that name already exists.
func (s *ShellStore) CheckTag(ctx context.Context, storePath, name string) error {
	if err := s.ensureStore(storePath); err != nil {
		return err
	}
	ref := "refs/tags/" + name
	if _, err := s.run(ctx, storePath, "check-ref-format", ref); err != nil {
		return fmt.Errorf("tag %q is not a valid name: %w", name, sincro.ErrInvalidArgument)
	}
	_, err := s.run(ctx, storePath, "rev-parse", "--verify", "-q", ref)
	if err == nil {
		return fmt.Errorf("tag %q already exists: %w", name, sincro.ErrInvalidArgument)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return nil
	}
	return fmt.Errorf("git rev-parse %s failed: %w", ref, err)
}

func (s *ShellStore) Log(ctx context.Context, storePath, branch string) ([]*model.CommitLogEntry, error) {
	if err := s.ensureStore(storePath); err != nil {
		return nil, err
	}
	ref := branch
	if ref == "" {
		ref = "HEAD"
	}

	out, err := s.run(ctx, storePath, "log", "--format=%H%x1f%aI%x1f%s%x1e", ref, "--")
	if err != nil {
		return nil, fmt.Errorf("git log %s failed: %w", ref, err)
	}

	tags, err := s.tagsByCommit(ctx, storePath)
	if err != nil {
		return nil, err
	}

	var entries []*model.CommitLogEntry
	for _, record := range strings.Split(string(out), "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, "\x1f", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected git log record %q", record)
		}
		date, err := time.Parse(time.RFC3339, fields[1])
		if err != nil {
			return nil, fmt.Errorf("parsing commit date %q: %w", fields[1], err)
		}
		entries = append(entries, &model.CommitLogEntry{
			Hash:    fields[0],
			Date:    date,
			Message: fields[2],
			Tag:     pickTag(tags[fields[0]], branch),
		})
	}
	return entries, nil
}

// tagsByCommit maps commit hashes to the lightweight tags pointing at them.
func (s *ShellStore) tagsByCommit(ctx context.Context, storePath string) (map[string][]string, error) {
	out, err := s.run(ctx, storePath, "for-each-ref", "--format=%(objectname) %(refname:short)", "refs/tags")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref failed: %w", err)
	}
	tags := make(map[string][]string)
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		hash, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		tags[hash] = append(tags[hash], name)
	}
	return tags, nil
}

// pickTag prefers a tag inside the branch's namespace.
func pickTag(tags []string, branch string) string {
	if len(tags) == 0 {
		return ""
	}
	if branch != "" {
		for _, t := range tags {
			if strings.HasPrefix(t, branch+"/") {
				return t
			}
		}
	}
	return tags[0]
}

func (s *ShellStore) Diff(ctx context.Context, storePath, rev1, rev2 string, paths ...string) (string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return "", err
	}

	from, to := rev1, rev2
	if to == "" {
		to = rev1
		from = rev1 + "~1"
		if _, err := s.revParse(ctx, storePath, from); err != nil {
			from = emptyTree
		}
	}

	args := append([]string{"diff", "--no-color", from, to, "--"}, paths...)
	out, err := s.run(ctx, storePath, args...)
	if err != nil {
		return "", fmt.Errorf("git diff %s..%s failed: %w", from, to, err)
	}
	return string(out), nil
}

func (s *ShellStore) DiffWorkingTree(ctx context.Context, storePath string, paths ...string) (string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return "", err
	}
	args := append([]string{"diff", "--no-color", "HEAD", "--"}, paths...)
	out, err := s.run(ctx, storePath, args...)
	if err != nil {
		return "", fmt.Errorf("git diff HEAD failed: %w", err)
	}
	return string(out), nil
}

func (s *ShellStore) ListTrackedPaths(ctx context.Context, storePath, revision string) ([]string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return nil, err
	}
	args := []string{"ls-files", "-z"}
	if revision != "" {
		args = []string{"ls-tree", "-r", "-z", "--name-only", revision}
	}
	out, err := s.run(ctx, storePath, args...)
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", args[0], err)
	}

	var paths []string
	for _, p := range strings.Split(string(out), "\x00") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (s *ShellStore) ReadBlob(ctx context.Context, storePath, revision, path string) ([]byte, error) {
	if err := s.ensureStore(storePath); err != nil {
		return nil, err
	}
	out, err := s.run(ctx, storePath, "cat-file", "blob", revision+":"+path)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, revision, err)
	}
	return out, nil
}

func (s *ShellStore) ListLocalBranches(ctx context.Context, storePath string) ([]string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return nil, err
	}
	out, err := s.run(ctx, storePath, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref failed: %w", err)
	}
	var branches []string
	for _, b := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if b != "" {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

func (s *ShellStore) CurrentBranch(ctx context.Context, storePath string) (string, error) {
	if err := s.ensureStore(storePath); err != nil {
		return "", err
	}
	out, err := s.run(ctx, storePath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse --abbrev-ref failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *ShellStore) HasUncommittedChanges(ctx context.Context, storePath string) (bool, error) {
	if err := s.ensureStore(storePath); err != nil {
		return false, err
	}
	out, err := s.run(ctx, storePath, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

func (s *ShellStore) revParse(ctx context.Context, storePath, rev string) (string, error) {
	out, err := s.run(ctx, storePath, "rev-parse", "--verify", "-q", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s failed: %w", rev, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ensureStore fails with ErrStoreUnavailable unless storePath holds a repository.
func (s *ShellStore) ensureStore(storePath string) error {
	info, err := os.Stat(filepath.Join(storePath, ".git"))
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", storePath, sincro.ErrStoreUnavailable)
	}
	return nil
}

// run executes git in dir and returns stdout. On failure the error carries
// stderr and still wraps the *exec.ExitError.
func (s *ShellStore) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.gitBin, append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"LC_ALL=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

package gitstore

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"sincro-go/internal/sincro"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// newStore initialises a store with one commit of "content" on main.
func newStore(t *testing.T, content string) (*ShellStore, string) {
	t.Helper()
	requireGit(t)

	s := NewShellStore()
	dir := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()
	if err := s.Init(ctx, dir); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "content"), content)
	if _, err := s.Commit(ctx, dir, "content", "Initial empty file"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return s, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestShellStore_Init(t *testing.T) {
	t.Run("starts on main with store identity", func(t *testing.T) {
		s, dir := newStore(t, "")
		ctx := context.Background()

		branch, err := s.CurrentBranch(ctx, dir)
		if err != nil {
			t.Fatalf("CurrentBranch() error = %v", err)
		}
		if branch != DefaultBranch {
			t.Errorf("CurrentBranch() = %q, want %q", branch, DefaultBranch)
		}

		out, err := exec.Command("git", "-C", dir, "log", "-1", "--format=%an <%ae>").Output()
		if err != nil {
			t.Fatalf("git log: %v", err)
		}
		if got := strings.TrimSpace(string(out)); got != "Sincro <sincro@local>" {
			t.Errorf("author = %q, want %q", got, "Sincro <sincro@local>")
		}
	})

	t.Run("fails when store exists", func(t *testing.T) {
		s, dir := newStore(t, "")

		err := s.Init(context.Background(), dir)
		if !errors.Is(err, sincro.ErrStoreExists) {
			t.Errorf("Init() error = %v, want ErrStoreExists", err)
		}
	})
}

func TestShellStore_StoreUnavailable(t *testing.T) {
	requireGit(t)
	s := NewShellStore()
	missing := filepath.Join(t.TempDir(), "nope")

	if _, err := s.CurrentBranch(context.Background(), missing); !errors.Is(err, sincro.ErrStoreUnavailable) {
		t.Errorf("CurrentBranch() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := s.Log(context.Background(), missing, "main"); !errors.Is(err, sincro.ErrStoreUnavailable) {
		t.Errorf("Log() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestShellStore_Commit(t *testing.T) {
	t.Run("no changes is distinguished", func(t *testing.T) {
		s, dir := newStore(t, "a=1\n")

		_, err := s.CommitAll(context.Background(), dir, "again")
		if !errors.Is(err, sincro.ErrNoChanges) {
			t.Errorf("CommitAll() error = %v, want ErrNoChanges", err)
		}
	})

	t.Run("returns new head hash", func(t *testing.T) {
		s, dir := newStore(t, "a=1\n")
		ctx := context.Background()
		writeFile(t, filepath.Join(dir, "content"), "a=2\n")

		hash, err := s.CommitAll(ctx, dir, "update")
		if err != nil {
			t.Fatalf("CommitAll() error = %v", err)
		}
		log, err := s.Log(ctx, dir, DefaultBranch)
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if len(log) != 2 {
			t.Fatalf("len(Log()) = %d, want 2", len(log))
		}
		if log[0].Hash != hash || log[0].Message != "update" {
			t.Errorf("Log()[0] = %+v, want hash %s message update", log[0], hash)
		}
	})

	t.Run("commit all ignores untracked paths", func(t *testing.T) {
		s, dir := newStore(t, "a=1\n")
		ctx := context.Background()
		writeFile(t, filepath.Join(dir, "extra.txt"), "stray")

		if _, err := s.CommitAll(ctx, dir, "stray"); !errors.Is(err, sincro.ErrNoChanges) {
			t.Fatalf("CommitAll() error = %v, want ErrNoChanges", err)
		}
		paths, err := s.ListTrackedPaths(ctx, dir, "HEAD")
		if err != nil {
			t.Fatalf("ListTrackedPaths() error = %v", err)
		}
		if len(paths) != 1 || paths[0] != "content" {
			t.Errorf("ListTrackedPaths() = %v, want [content]", paths)
		}
	})
}

func TestShellStore_Branches(t *testing.T) {
	s, dir := newStore(t, "base\n")
	ctx := context.Background()

	if err := s.CreateBranch(ctx, dir, "deploy-aaaa", ""); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "content"), "from a\n")
	if _, err := s.CommitAll(ctx, dir, "a change"); err != nil {
		t.Fatalf("CommitAll() error = %v", err)
	}

	if err := s.CreateBranch(ctx, dir, "deploy-bbbb", DefaultBranch); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "content")); got != "base\n" {
		t.Errorf("content on deploy-bbbb = %q, want %q", got, "base\n")
	}

	branches, err := s.ListLocalBranches(ctx, dir)
	if err != nil {
		t.Fatalf("ListLocalBranches() error = %v", err)
	}
	if len(branches) != 3 {
		t.Errorf("ListLocalBranches() = %v, want 3 branches", branches)
	}

	if err := s.Checkout(ctx, dir, "deploy-aaaa"); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "content")); got != "from a\n" {
		t.Errorf("content on deploy-aaaa = %q, want %q", got, "from a\n")
	}
}

func TestShellStore_CheckoutClean(t *testing.T) {
	s, dir := newStore(t, "base\n")
	ctx := context.Background()
	if err := s.CreateBranch(ctx, dir, "other", ""); err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "content"), "dirty\n")

	if err := s.CheckoutClean(ctx, dir, DefaultBranch); err != nil {
		t.Fatalf("CheckoutClean() error = %v", err)
	}
	dirty, err := s.HasUncommittedChanges(ctx, dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges() error = %v", err)
	}
	if dirty {
		t.Error("HasUncommittedChanges() = true after CheckoutClean")
	}
}

func TestShellStore_TagsAttachToLog(t *testing.T) {
	s, dir := newStore(t, "base\n")
	ctx := context.Background()

	for _, branch := range []string{"deploy-aaaa", "deploy-bbbb"} {
		if err := s.CreateBranch(ctx, dir, branch, DefaultBranch); err != nil {
			t.Fatalf("CreateBranch(%s) error = %v", branch, err)
		}
		if err := s.Tag(ctx, dir, branch+"/v1"); err != nil {
			t.Fatalf("Tag(%s/v1) error = %v", branch, err)
		}
	}

	for _, branch := range []string{"deploy-aaaa", "deploy-bbbb"} {
		log, err := s.Log(ctx, dir, branch)
		if err != nil {
			t.Fatalf("Log(%s) error = %v", branch, err)
		}
		if len(log) != 1 {
			t.Fatalf("len(Log(%s)) = %d, want 1", branch, len(log))
		}
		if want := branch + "/v1"; log[0].Tag != want {
			t.Errorf("Log(%s)[0].Tag = %q, want %q", branch, log[0].Tag, want)
		}
	}
}

func TestShellStore_CheckTag(t *testing.T) {
	s, dir := newStore(t, "base\n")
	ctx := context.Background()
	if err := s.Tag(ctx, dir, "main/v1"); err != nil {
		t.Fatalf("Tag() error = %v", err)
	}

	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"free name", "main/v2", false},
		{"existing tag", "main/v1", true},
		{"double dot", "main/a..b", true},
		{"space", "main/has space", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckTag(ctx, dir, tt.tag)
			if tt.wantErr && !errors.Is(err, sincro.ErrInvalidArgument) {
				t.Errorf("CheckTag(%q) error = %v, want ErrInvalidArgument", tt.tag, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CheckTag(%q) error = %v", tt.tag, err)
			}
		})
	}
}

func TestShellStore_Diff(t *testing.T) {
	t.Run("first commit diffs against empty tree", func(t *testing.T) {
		s, dir := newStore(t, "hello\n")
		ctx := context.Background()
		log, err := s.Log(ctx, dir, DefaultBranch)
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}

		diff, err := s.Diff(ctx, dir, log[0].Hash, "", "content")
		if err != nil {
			t.Fatalf("Diff() error = %v", err)
		}
		if !strings.Contains(diff, "+hello") {
			t.Errorf("Diff() = %q, want full content as addition", diff)
		}
	})

	t.Run("single revision diffs against parent", func(t *testing.T) {
		s, dir := newStore(t, "one\n")
		ctx := context.Background()
		writeFile(t, filepath.Join(dir, "content"), "two\n")
		hash, err := s.CommitAll(ctx, dir, "two")
		if err != nil {
			t.Fatalf("CommitAll() error = %v", err)
		}

		diff, err := s.Diff(ctx, dir, hash, "")
		if err != nil {
			t.Fatalf("Diff() error = %v", err)
		}
		if !strings.Contains(diff, "-one") || !strings.Contains(diff, "+two") {
			t.Errorf("Diff() = %q, want -one +two", diff)
		}
	})

	t.Run("working tree against head", func(t *testing.T) {
		s, dir := newStore(t, "one\n")
		ctx := context.Background()
		writeFile(t, filepath.Join(dir, "content"), "edited\n")

		diff, err := s.DiffWorkingTree(ctx, dir, "content")
		if err != nil {
			t.Fatalf("DiffWorkingTree() error = %v", err)
		}
		if !strings.Contains(diff, "+edited") {
			t.Errorf("DiffWorkingTree() = %q, want +edited", diff)
		}
	})
}

func TestShellStore_ReadBlobAndTrackedPaths(t *testing.T) {
	requireGit(t)
	s := NewShellStore()
	dir := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()
	if err := s.Init(ctx, dir); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "app", "config.yml"), "port: 1\n")
	writeFile(t, filepath.Join(dir, ".env"), "KEY=1\n")
	hash, err := s.Commit(ctx, dir, ".", "Initial bundle import")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	writeFile(t, filepath.Join(dir, "app", "config.yml"), "port: 2\n")
	if _, err := s.CommitAll(ctx, dir, "port"); err != nil {
		t.Fatalf("CommitAll() error = %v", err)
	}

	paths, err := s.ListTrackedPaths(ctx, dir, hash)
	if err != nil {
		t.Fatalf("ListTrackedPaths() error = %v", err)
	}
	if len(paths) != 2 || paths[0] != ".env" || paths[1] != "app/config.yml" {
		t.Errorf("ListTrackedPaths() = %v, want [.env app/config.yml]", paths)
	}

	blob, err := s.ReadBlob(ctx, dir, hash, "app/config.yml")
	if err != nil {
		t.Fatalf("ReadBlob() error = %v", err)
	}
	if string(blob) != "port: 1\n" {
		t.Errorf("ReadBlob() = %q, want %q", blob, "port: 1\n")
	}

	if _, err := s.ReadBlob(ctx, dir, hash, "missing"); err == nil {
		t.Error("ReadBlob() of missing path succeeded")
	}
}

func TestShellStore_HasUncommittedChanges(t *testing.T) {
	s, dir := newStore(t, "one\n")
	ctx := context.Background()

	dirty, err := s.HasUncommittedChanges(ctx, dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges() error = %v", err)
	}
	if dirty {
		t.Error("clean store reported changes")
	}

	if err := os.Remove(filepath.Join(dir, "content")); err != nil {
		t.Fatal(err)
	}
	dirty, err = s.HasUncommittedChanges(ctx, dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges() error = %v", err)
	}
	if !dirty {
		t.Error("deleted tracked file not reported as change")
	}
}

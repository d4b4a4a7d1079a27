package sincro_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sincro-go/internal/sincro"
	"sincro-go/internal/testutil"
)

func TestService_GetDiff(t *testing.T) {
	env := newTestEnv(t)
	f := env.createFile(t, "db.env")
	repo := env.newRepo(t)
	d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: repo, FileRelativePath: "db.env"})

	testutil.WriteFile(t, filepath.Join(repo, "db.env"), "A=1\n")
	h1 := env.commit(t, d.ID, "one").Hash
	testutil.WriteFile(t, filepath.Join(repo, "db.env"), "A=2\n")
	h2 := env.commit(t, d.ID, "two").Hash

	t.Run("between two commits", func(t *testing.T) {
		diff, err := env.svc.GetDiff(context.Background(), d.ID, h1, h2)
		if err != nil {
			t.Fatalf("GetDiff() error = %v", err)
		}
		if !strings.Contains(diff, "-A=1") || !strings.Contains(diff, "+A=2") {
			t.Errorf("GetDiff() = %q, want A=1 replaced by A=2", diff)
		}
	})

	t.Run("against the parent", func(t *testing.T) {
		diff, err := env.svc.GetDiff(context.Background(), d.ID, h1, "")
		if err != nil {
			t.Fatalf("GetDiff() error = %v", err)
		}
		if !strings.Contains(diff, "+A=1") {
			t.Errorf("GetDiff() = %q, want A=1 added", diff)
		}
	})

	t.Run("requires a hash", func(t *testing.T) {
		if _, err := env.svc.GetDiff(context.Background(), d.ID, "", ""); !errors.Is(err, sincro.ErrInvalidArgument) {
			t.Errorf("GetDiff() error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestService_GetDiffWorkingTree(t *testing.T) {
	env := newTestEnv(t)
	f := env.createFile(t, "db.env")
	repo := env.newRepo(t)
	d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: repo, FileRelativePath: "db.env"})
	target := filepath.Join(repo, "db.env")

	diff, err := env.svc.GetDiffWorkingTree(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetDiffWorkingTree() error = %v", err)
	}
	if diff != "" {
		t.Errorf("GetDiffWorkingTree() = %q, want empty", diff)
	}

	testutil.WriteFile(t, target, "SECRET=x\n")
	diff, err = env.svc.GetDiffWorkingTree(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetDiffWorkingTree() error = %v", err)
	}
	if !strings.Contains(diff, "+SECRET=x") {
		t.Errorf("GetDiffWorkingTree() = %q, want SECRET added", diff)
	}
	if got := testutil.ReadFile(t, filepath.Join(env.svc.StorePath(f.ID), sincro.ContentEntry)); got != "" {
		t.Errorf("store content = %q, want untouched", got)
	}

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}
	diff, err = env.svc.GetDiffWorkingTree(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetDiffWorkingTree() error = %v", err)
	}
	if diff != "" {
		t.Errorf("GetDiffWorkingTree() for missing target = %q, want empty", diff)
	}
}

func TestService_CheckoutToCommit(t *testing.T) {
	env := newTestEnv(t)
	f := env.createFile(t, "db.env")
	repo := env.newRepo(t)
	d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: repo, FileRelativePath: "db.env"})
	target := filepath.Join(repo, "db.env")

	testutil.WriteFile(t, target, "v1\n")
	h1 := env.commit(t, d.ID, "v1").Hash
	testutil.WriteFile(t, target, "v2\n")
	h2 := env.commit(t, d.ID, "v2").Hash

	if err := env.svc.CheckoutToCommit(context.Background(), d.ID, h1); err != nil {
		t.Fatalf("CheckoutToCommit() error = %v", err)
	}
	if got := testutil.ReadFile(t, target); got != "v1\n" {
		t.Errorf("deployed content = %q, want %q", got, "v1\n")
	}
	got, err := env.svc.GetDeployment(d.ID)
	if err != nil {
		t.Fatalf("GetDeployment() error = %v", err)
	}
	if got.CurrentCommitHash.String != h1 {
		t.Errorf("CurrentCommitHash = %s, want %s", got.CurrentCommitHash.String, h1)
	}

	commits, err := env.svc.ListCommits(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if commits[0].Hash != h2 {
		t.Errorf("branch head = %s, want %s unchanged", commits[0].Hash, h2)
	}
	if !env.hasChanges(t, d.ID) {
		t.Error("CheckForChanges() = false, want old content reported against head")
	}

	if err := env.svc.CheckoutToCommit(context.Background(), d.ID, "deadbeef"); err == nil {
		t.Error("CheckoutToCommit(unknown) error = nil, want error")
	}
}

func TestService_GetFileAtRevision(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.createFile(t, "db.env")
		repo := env.newRepo(t)
		d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: repo, FileRelativePath: "conf/db.env"})
		testutil.WriteFile(t, filepath.Join(repo, "conf", "db.env"), "A=1\n")
		h := env.commit(t, d.ID, "one").Hash

		got, err := env.svc.GetFileAtRevision(context.Background(), d.ID, h)
		if err != nil {
			t.Fatalf("GetFileAtRevision() error = %v", err)
		}
		if got != "A=1\n" {
			t.Errorf("GetFileAtRevision() = %q, want %q", got, "A=1\n")
		}

		files, err := env.svc.GetFilesAtRevision(context.Background(), d.ID, h)
		if err != nil {
			t.Fatalf("GetFilesAtRevision() error = %v", err)
		}
		if len(files) != 1 || files[0].Path != "conf/db.env" {
			t.Errorf("GetFilesAtRevision() = %+v, want one conf/db.env entry", files)
		}
	})

	t.Run("bundle entries are joined under headers", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.createBundle(t, map[string]string{"a.txt": "A", "b/c.txt": "C"})
		d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: env.newRepo(t), FileRelativePath: "cfg"})
		commits, err := env.svc.ListCommits(context.Background(), d.ID)
		if err != nil {
			t.Fatalf("ListCommits() error = %v", err)
		}

		got, err := env.svc.GetFileAtRevision(context.Background(), d.ID, commits[0].Hash)
		if err != nil {
			t.Fatalf("GetFileAtRevision() error = %v", err)
		}
		want := "=== a.txt ===\nA\n\n=== b/c.txt ===\nC"
		if got != want {
			t.Errorf("GetFileAtRevision() = %q, want %q", got, want)
		}
	})

	t.Run("unknown revision", func(t *testing.T) {
		env := newTestEnv(t)
		f := env.createFile(t, "db.env")
		d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: env.newRepo(t), FileRelativePath: "db.env"})
		if _, err := env.svc.GetFileAtRevision(context.Background(), d.ID, "deadbeef"); err == nil {
			t.Error("GetFileAtRevision() error = nil, want error")
		}
	})
}

func TestService_GetCurrentFiles(t *testing.T) {
	env := newTestEnv(t)
	f := env.createBundle(t, map[string]string{"a.txt": "A", "b.txt": "B"})
	repo := env.newRepo(t)
	d := env.deploy(t, sincro.DeploymentRequest{FileID: f.ID, RepoPath: repo, FileRelativePath: "cfg"})
	testutil.WriteFile(t, filepath.Join(repo, "cfg", "a.txt"), "A2")
	if err := os.Remove(filepath.Join(repo, "cfg", "b.txt")); err != nil {
		t.Fatal(err)
	}

	files, err := env.svc.GetCurrentFiles(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetCurrentFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("GetCurrentFiles() = %d entries, want 2", len(files))
	}
	if files[0].Path != "a.txt" || files[0].Content != "A2" || files[0].Missing {
		t.Errorf("files[0] = %+v, want live a.txt", files[0])
	}
	if files[1].Path != "b.txt" || !files[1].Missing || files[1].Content != "[File not found]" {
		t.Errorf("files[1] = %+v, want missing b.txt", files[1])
	}
}

package database

import (
	"testing"
	"time"

	"sincro-go/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createFile(t *testing.T, db *SQLiteDatabase, id string, kind model.FileKind) *model.ManagedFile {
	t.Helper()
	f := &model.ManagedFile{
		ID:          id,
		Name:        id + ".env",
		Alias:       id,
		Kind:        kind,
		UseAutoIcon: true,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	if err := db.CreateFile(f); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	return f
}

func createDeployment(t *testing.T, db *SQLiteDatabase, id, fileID string, active bool) *model.Deployment {
	t.Helper()
	d := &model.Deployment{
		ID:               id,
		FileID:           fileID,
		RepoPath:         "/repo/" + id,
		FileRelativePath: "config/db.env",
		BranchName:       "deploy-" + id,
		IsActive:         active,
		CreatedAt:        baseTime,
	}
	if err := db.CreateDeployment(d); err != nil {
		t.Fatalf("CreateDeployment() error = %v", err)
	}
	return d
}

func TestSQLiteDatabase_Files(t *testing.T) {
	t.Run("returns nil when file not found", func(t *testing.T) {
		db := newTestDB(t)

		f, err := db.FindFile("missing")
		if err != nil {
			t.Fatalf("FindFile() error = %v", err)
		}
		if f != nil {
			t.Errorf("FindFile() = %v, want nil", f)
		}
	})

	t.Run("finds created file", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindBundle)

		got, err := db.FindFile("f1")
		if err != nil {
			t.Fatalf("FindFile() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindFile() = nil, want file")
		}
		if got.Kind != model.KindBundle {
			t.Errorf("Kind = %q, want %q", got.Kind, model.KindBundle)
		}
		if !got.UseAutoIcon {
			t.Error("UseAutoIcon = false, want true")
		}
		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
		}
	})

	t.Run("update changes only given fields", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)

		alias := "renamed"
		noIcon := false
		later := baseTime.Add(time.Hour)
		if err := db.UpdateFile("f1", model.FileUpdate{Alias: &alias, UseAutoIcon: &noIcon}, later); err != nil {
			t.Fatalf("UpdateFile() error = %v", err)
		}

		got, err := db.FindFile("f1")
		if err != nil {
			t.Fatalf("FindFile() error = %v", err)
		}
		if got.Name != "f1.env" {
			t.Errorf("Name = %q, want unchanged %q", got.Name, "f1.env")
		}
		if got.Alias != "renamed" {
			t.Errorf("Alias = %q, want %q", got.Alias, "renamed")
		}
		if got.UseAutoIcon {
			t.Error("UseAutoIcon = true, want false")
		}
		if !got.UpdatedAt.Equal(later) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
		}
	})

	t.Run("list attaches tags", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createFile(t, db, "f2", model.KindSingle)
		if err := db.CreateTag(&model.Tag{ID: "t1", Name: "prod", Color: "#f00", CreatedAt: baseTime}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if err := db.SetFileTags("f2", []string{"t1"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}

		files, err := db.ListFiles()
		if err != nil {
			t.Fatalf("ListFiles() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("len(ListFiles()) = %d, want 2", len(files))
		}
		for _, f := range files {
			want := 0
			if f.ID == "f2" {
				want = 1
			}
			if len(f.Tags) != want {
				t.Errorf("file %s has %d tags, want %d", f.ID, len(f.Tags), want)
			}
		}
	})

	t.Run("delete cascades to deployments", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)

		if err := db.DeleteFile("f1"); err != nil {
			t.Fatalf("DeleteFile() error = %v", err)
		}

		d, err := db.FindDeployment("d1")
		if err != nil {
			t.Fatalf("FindDeployment() error = %v", err)
		}
		if d != nil {
			t.Error("deployment survived file deletion")
		}
	})
}

func TestSQLiteDatabase_Deployments(t *testing.T) {
	t.Run("nullable columns start empty", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)

		got, err := db.FindDeployment("d1")
		if err != nil {
			t.Fatalf("FindDeployment() error = %v", err)
		}
		if got.LastSyncedAt.Valid || got.CurrentCommitHash.Valid || got.Description.Valid {
			t.Errorf("nullable columns set on new deployment: %+v", got)
		}
		if !got.IsActive {
			t.Error("IsActive = false, want true")
		}
	})

	t.Run("record commit sets hash and sync time", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)

		at := baseTime.Add(time.Minute)
		if err := db.RecordDeploymentCommit("d1", "abc123", at); err != nil {
			t.Fatalf("RecordDeploymentCommit() error = %v", err)
		}

		got, err := db.FindDeployment("d1")
		if err != nil {
			t.Fatalf("FindDeployment() error = %v", err)
		}
		if got.CurrentCommitHash.String != "abc123" {
			t.Errorf("CurrentCommitHash = %q, want %q", got.CurrentCommitHash.String, "abc123")
		}
		if !got.LastSyncedAt.Time.Equal(at) {
			t.Errorf("LastSyncedAt = %v, want %v", got.LastSyncedAt.Time, at)
		}
	})

	t.Run("mark synced leaves hash alone", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)
		if err := db.SetDeploymentCurrentCommit("d1", "abc123"); err != nil {
			t.Fatalf("SetDeploymentCurrentCommit() error = %v", err)
		}

		if err := db.MarkDeploymentSynced("d1", baseTime); err != nil {
			t.Fatalf("MarkDeploymentSynced() error = %v", err)
		}

		got, _ := db.FindDeployment("d1")
		if got.CurrentCommitHash.String != "abc123" {
			t.Errorf("CurrentCommitHash = %q, want %q", got.CurrentCommitHash.String, "abc123")
		}
		if !got.LastSyncedAt.Valid {
			t.Error("LastSyncedAt not set")
		}
	})

	t.Run("description can be set and cleared", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)

		desc := "staging box"
		if err := db.SetDeploymentDescription("d1", &desc); err != nil {
			t.Fatalf("SetDeploymentDescription() error = %v", err)
		}
		got, _ := db.FindDeployment("d1")
		if got.Description.String != desc {
			t.Errorf("Description = %q, want %q", got.Description.String, desc)
		}

		if err := db.SetDeploymentDescription("d1", nil); err != nil {
			t.Fatalf("SetDeploymentDescription(nil) error = %v", err)
		}
		got, _ = db.FindDeployment("d1")
		if got.Description.Valid {
			t.Errorf("Description = %q, want NULL", got.Description.String)
		}
	})

	t.Run("counts and active listing", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)
		createDeployment(t, db, "d2", "f1", true)
		createDeployment(t, db, "d3", "f1", false)

		total, active, err := db.CountDeployments()
		if err != nil {
			t.Fatalf("CountDeployments() error = %v", err)
		}
		if total != 3 || active != 2 {
			t.Errorf("CountDeployments() = (%d, %d), want (3, 2)", total, active)
		}

		if err := db.SetDeploymentActive("d2", false); err != nil {
			t.Fatalf("SetDeploymentActive() error = %v", err)
		}
		ds, err := db.ListActiveDeployments()
		if err != nil {
			t.Fatalf("ListActiveDeployments() error = %v", err)
		}
		if len(ds) != 1 || ds[0].ID != "d1" {
			t.Errorf("ListActiveDeployments() = %v, want [d1]", ds)
		}
	})

	t.Run("list by file attaches tags", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createFile(t, db, "f2", model.KindSingle)
		createDeployment(t, db, "d1", "f1", true)
		createDeployment(t, db, "d2", "f2", true)
		if err := db.CreateTag(&model.Tag{ID: "t1", Name: "laptop", Color: "#0f0", CreatedAt: baseTime}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if err := db.SetDeploymentTags("d1", []string{"t1"}); err != nil {
			t.Fatalf("SetDeploymentTags() error = %v", err)
		}

		ds, err := db.ListDeployments("f1")
		if err != nil {
			t.Fatalf("ListDeployments() error = %v", err)
		}
		if len(ds) != 1 {
			t.Fatalf("len(ListDeployments()) = %d, want 1", len(ds))
		}
		if len(ds[0].Tags) != 1 || ds[0].Tags[0].Name != "laptop" {
			t.Errorf("Tags = %v, want [laptop]", ds[0].Tags)
		}
	})
}

func TestSQLiteDatabase_Tags(t *testing.T) {
	t.Run("name is unique", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CreateTag(&model.Tag{ID: "t1", Name: "prod", Color: "#f00", CreatedAt: baseTime}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if err := db.CreateTag(&model.Tag{ID: "t2", Name: "prod", Color: "#00f", CreatedAt: baseTime}); err == nil {
			t.Error("CreateTag() with duplicate name succeeded")
		}
	})

	t.Run("list counts files", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		createFile(t, db, "f2", model.KindSingle)
		for _, tag := range []*model.Tag{
			{ID: "t1", Name: "prod", Color: "#f00", CreatedAt: baseTime},
			{ID: "t2", Name: "dev", Color: "#0f0", CreatedAt: baseTime},
		} {
			if err := db.CreateTag(tag); err != nil {
				t.Fatalf("CreateTag() error = %v", err)
			}
		}
		if err := db.SetFileTags("f1", []string{"t1"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}
		if err := db.SetFileTags("f2", []string{"t1"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}

		tags, err := db.ListTags()
		if err != nil {
			t.Fatalf("ListTags() error = %v", err)
		}
		counts := map[string]int{}
		for _, tag := range tags {
			counts[tag.Name] = tag.FileCount
		}
		if counts["prod"] != 2 || counts["dev"] != 0 {
			t.Errorf("file counts = %v, want prod=2 dev=0", counts)
		}
	})

	t.Run("set file tags replaces the set", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		for _, id := range []string{"a", "b", "c"} {
			if err := db.CreateTag(&model.Tag{ID: id, Name: "tag-" + id, Color: "#fff", CreatedAt: baseTime}); err != nil {
				t.Fatalf("CreateTag() error = %v", err)
			}
		}

		if err := db.SetFileTags("f1", []string{"a", "b"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}
		if err := db.SetFileTags("f1", []string{"c"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}

		tags, err := db.FindFileTags("f1")
		if err != nil {
			t.Fatalf("FindFileTags() error = %v", err)
		}
		if len(tags) != 1 || tags[0].ID != "c" {
			t.Errorf("FindFileTags() = %v, want [c]", tags)
		}
	})

	t.Run("deleting a tag unlinks it", func(t *testing.T) {
		db := newTestDB(t)
		createFile(t, db, "f1", model.KindSingle)
		if err := db.CreateTag(&model.Tag{ID: "t1", Name: "prod", Color: "#f00", CreatedAt: baseTime}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}
		if err := db.SetFileTags("f1", []string{"t1"}); err != nil {
			t.Fatalf("SetFileTags() error = %v", err)
		}

		if err := db.DeleteTag("t1"); err != nil {
			t.Fatalf("DeleteTag() error = %v", err)
		}
		tags, err := db.FindFileTags("f1")
		if err != nil {
			t.Fatalf("FindFileTags() error = %v", err)
		}
		if len(tags) != 0 {
			t.Errorf("FindFileTags() = %v, want empty", tags)
		}
	})

	t.Run("find by name", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CreateTag(&model.Tag{ID: "t1", Name: "prod", Color: "#f00", CreatedAt: baseTime}); err != nil {
			t.Fatalf("CreateTag() error = %v", err)
		}

		got, err := db.FindTagByName("prod")
		if err != nil {
			t.Fatalf("FindTagByName() error = %v", err)
		}
		if got == nil || got.ID != "t1" {
			t.Errorf("FindTagByName() = %v, want t1", got)
		}

		missing, err := db.FindTagByName("nope")
		if err != nil {
			t.Fatalf("FindTagByName() error = %v", err)
		}
		if missing != nil {
			t.Errorf("FindTagByName() = %v, want nil", missing)
		}
	})
}

package model

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"time"
)

// FileKind distinguishes a single managed file from a multi-file bundle.
type FileKind string

const (
	KindSingle FileKind = "file"
	KindBundle FileKind = "bundle"
)

// ManagedFile is a user-defined unit of content tracked independently of any
// external repository. Its version store lives at <files dir>/<ID>.
type ManagedFile struct {
	ID          string    `db:"id" json:"id"`     // UUID
	Name        string    `db:"name" json:"name"` // Display filename
	Alias       string    `db:"alias" json:"alias"`
	Kind        FileKind  `db:"type" json:"kind"`
	UseAutoIcon bool      `db:"use_auto_icon" json:"useAutoIcon"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
	Tags        []*Tag    `db:"-" json:"tags"`
}

// IsBundle reports whether the file's store holds a relative-path tree.
func (f *ManagedFile) IsBundle() bool { return f.Kind == KindBundle }

// FileUpdate carries the optional fields of a ManagedFile update.
// Nil fields are left unchanged.
type FileUpdate struct {
	Name        *string
	Alias       *string
	UseAutoIcon *bool
}

// Deployment is one materialization of a ManagedFile at an external location,
// with its own branch in the file's version store.
type Deployment struct {
	ID                string         `db:"id" json:"id"`
	FileID            string         `db:"file_id" json:"fileId"`
	RepoPath          string         `db:"repo_path" json:"repoPath"`
	FileRelativePath  string         `db:"file_relative_path" json:"fileRelativePath"`
	BranchName        string         `db:"branch_name" json:"branchName"`
	IsActive          bool           `db:"is_active" json:"isActive"`
	LastSyncedAt      sql.NullTime   `db:"last_synced_at" json:"-"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	CurrentCommitHash sql.NullString `db:"current_commit_hash" json:"-"`
	Description       sql.NullString `db:"description" json:"-"`
	// AutoExclude records whether exclusion entries are kept while active.
	AutoExclude       bool           `db:"auto_exclude" json:"autoExclude"`
	Tags              []*Tag         `db:"-" json:"tags"`
}

// MarshalJSON flattens the nullable columns into optional JSON fields.
func (d Deployment) MarshalJSON() ([]byte, error) {
	type plain Deployment
	out := struct {
		plain
		LastSyncedAt      *time.Time `json:"lastSyncedAt"`
		CurrentCommitHash *string    `json:"currentCommitHash"`
		Description       *string    `json:"description"`
	}{plain: plain(d)}
	if d.LastSyncedAt.Valid {
		out.LastSyncedAt = &d.LastSyncedAt.Time
	}
	if d.CurrentCommitHash.Valid {
		out.CurrentCommitHash = &d.CurrentCommitHash.String
	}
	if d.Description.Valid {
		out.Description = &d.Description.String
	}
	return json.Marshal(out)
}

// TargetPath is the absolute location the deployment materializes to: the
// file itself for single files, the base directory for bundles.
func (d *Deployment) TargetPath() string {
	return filepath.Join(d.RepoPath, d.FileRelativePath)
}

// Tag is a coloured label attached to files and deployments.
type Tag struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	FileCount int       `db:"file_count" json:"fileCount"`
}

// CommitLogEntry is one commit on a deployment's branch. It is derived from
// the version store and never persisted.
type CommitLogEntry struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
	Tag     string    `json:"tag,omitempty"`
}

// FileContent is the content of one path of a deployment, either live on
// disk or read from a revision.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Missing bool   `json:"missing,omitempty"`
}

// Stats aggregates deployment counts and drift across active deployments.
type Stats struct {
	Active             int      `json:"active"`
	Total              int      `json:"total"`
	PendingChanges     int      `json:"pendingChanges"`
	FileIDsWithChanges []string `json:"fileIdsWithChanges"`
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sincro-go/internal/database/migrations"
	"sincro-go/internal/model"
	"sincro-go/internal/sincro"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements sincro.Database on SQLite through sqlx.
type SQLiteDatabase struct {
	db   *sqlx.DB
	path string
}

var _ sincro.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens a SQLite database at path, or an in-memory one
// for ":memory:". The schema is not touched; call Migrate.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection. Foreign keys are
// enabled through the DSN so every pooled connection enforces them.
func OpenConnection(path string) (*sqlx.DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db.DB)
}

// CheckMigrations returns an error unless the schema is current.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB)
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// ManagedFile operations

const fileColumns = `id, name, alias, type, use_auto_icon, created_at, updated_at`

func (s *SQLiteDatabase) CreateFile(f *model.ManagedFile) error {
	_, err := s.db.NamedExecContext(context.Background(), `
		INSERT INTO files (`+fileColumns+`)
		VALUES (:id, :name, :alias, :type, :use_auto_icon, :created_at, :updated_at)`, f)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindFile(id string) (*model.ManagedFile, error) {
	var f model.ManagedFile
	err := s.db.GetContext(context.Background(), &f, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding file: %w", err)
	}

	tags, err := s.FindFileTags(id)
	if err != nil {
		return nil, err
	}
	f.Tags = tags
	return &f, nil
}

func (s *SQLiteDatabase) ListFiles() ([]*model.ManagedFile, error) {
	ctx := context.Background()

	var files []*model.ManagedFile
	if err := s.db.SelectContext(ctx, &files, `SELECT `+fileColumns+` FROM files ORDER BY updated_at DESC`); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	var links []struct {
		FileID string `db:"file_id"`
		model.Tag
	}
	err := s.db.SelectContext(ctx, &links, `
		SELECT ft.file_id, t.id, t.name, t.color, t.created_at
		FROM file_tags ft JOIN tags t ON t.id = ft.tag_id
		ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("listing file tags: %w", err)
	}

	byFile := make(map[string][]*model.Tag)
	for i := range links {
		byFile[links[i].FileID] = append(byFile[links[i].FileID], &links[i].Tag)
	}
	for _, f := range files {
		f.Tags = byFile[f.ID]
	}
	return files, nil
}

func (s *SQLiteDatabase) UpdateFile(id string, u model.FileUpdate, at time.Time) error {
	_, err := s.db.ExecContext(context.Background(), `
		UPDATE files SET
			name = COALESCE(?, name),
			alias = COALESCE(?, alias),
			use_auto_icon = COALESCE(?, use_auto_icon),
			updated_at = ?
		WHERE id = ?`,
		u.Name, u.Alias, u.UseAutoIcon, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteFile(id string) error {
	if _, err := s.db.ExecContext(context.Background(), `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Deployment operations

const deploymentColumns = `id, file_id, repo_path, file_relative_path, branch_name, is_active,
	last_synced_at, created_at, current_commit_hash, description, auto_exclude`

func (s *SQLiteDatabase) CreateDeployment(d *model.Deployment) error {
	_, err := s.db.NamedExecContext(context.Background(), `
		INSERT INTO deployments (`+deploymentColumns+`)
		VALUES (:id, :file_id, :repo_path, :file_relative_path, :branch_name, :is_active,
			:last_synced_at, :created_at, :current_commit_hash, :description, :auto_exclude)`, d)
	if err != nil {
		return fmt.Errorf("creating deployment: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindDeployment(id string) (*model.Deployment, error) {
	var d model.Deployment
	err := s.db.GetContext(context.Background(), &d, `SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding deployment: %w", err)
	}

	tags, err := s.FindDeploymentTags(id)
	if err != nil {
		return nil, err
	}
	d.Tags = tags
	return &d, nil
}

func (s *SQLiteDatabase) ListDeployments(fileID string) ([]*model.Deployment, error) {
	var ds []*model.Deployment
	err := s.db.SelectContext(context.Background(), &ds,
		`SELECT `+deploymentColumns+` FROM deployments WHERE file_id = ? ORDER BY created_at DESC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	if err := s.attachDeploymentTags(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *SQLiteDatabase) ListActiveDeployments() ([]*model.Deployment, error) {
	var ds []*model.Deployment
	err := s.db.SelectContext(context.Background(), &ds,
		`SELECT `+deploymentColumns+` FROM deployments WHERE is_active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing active deployments: %w", err)
	}
	return ds, nil
}

func (s *SQLiteDatabase) attachDeploymentTags(ds []*model.Deployment) error {
	if len(ds) == 0 {
		return nil
	}
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}

	query, args, err := sqlx.In(`
		SELECT dt.deployment_id, t.id, t.name, t.color, t.created_at
		FROM deployment_tags dt JOIN tags t ON t.id = dt.tag_id
		WHERE dt.deployment_id IN (?)
		ORDER BY t.name`, ids)
	if err != nil {
		return fmt.Errorf("building deployment tag query: %w", err)
	}

	var links []struct {
		DeploymentID string `db:"deployment_id"`
		model.Tag
	}
	if err := s.db.SelectContext(context.Background(), &links, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("listing deployment tags: %w", err)
	}

	byDeployment := make(map[string][]*model.Tag)
	for i := range links {
		byDeployment[links[i].DeploymentID] = append(byDeployment[links[i].DeploymentID], &links[i].Tag)
	}
	for _, d := range ds {
		d.Tags = byDeployment[d.ID]
	}
	return nil
}

func (s *SQLiteDatabase) SetDeploymentActive(id string, active bool) error {
	return s.execDeployment("setting deployment active", `UPDATE deployments SET is_active = ? WHERE id = ?`, active, id)
}

func (s *SQLiteDatabase) MarkDeploymentSynced(id string, at time.Time) error {
	return s.execDeployment("marking deployment synced", `UPDATE deployments SET last_synced_at = ? WHERE id = ?`, at.UTC(), id)
}

func (s *SQLiteDatabase) RecordDeploymentCommit(id, hash string, at time.Time) error {
	return s.execDeployment("recording deployment commit",
		`UPDATE deployments SET current_commit_hash = ?, last_synced_at = ? WHERE id = ?`, hash, at.UTC(), id)
}

func (s *SQLiteDatabase) SetDeploymentCurrentCommit(id, hash string) error {
	return s.execDeployment("setting deployment commit", `UPDATE deployments SET current_commit_hash = ? WHERE id = ?`, hash, id)
}

func (s *SQLiteDatabase) SetDeploymentDescription(id string, description *string) error {
	return s.execDeployment("setting deployment description", `UPDATE deployments SET description = ? WHERE id = ?`, description, id)
}

func (s *SQLiteDatabase) DeleteDeployment(id string) error {
	return s.execDeployment("deleting deployment", `DELETE FROM deployments WHERE id = ?`, id)
}

func (s *SQLiteDatabase) execDeployment(what, query string, args ...any) error {
	if _, err := s.db.ExecContext(context.Background(), query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (s *SQLiteDatabase) CountDeployments() (int, int, error) {
	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := s.db.GetContext(context.Background(), &counts, `
		SELECT COUNT(*) AS total, COALESCE(SUM(is_active), 0) AS active FROM deployments`)
	if err != nil {
		return 0, 0, fmt.Errorf("counting deployments: %w", err)
	}
	return counts.Total, counts.Active, nil
}

// Tag operations

func (s *SQLiteDatabase) CreateTag(tag *model.Tag) error {
	_, err := s.db.NamedExecContext(context.Background(), `
		INSERT INTO tags (id, name, color, created_at) VALUES (:id, :name, :color, :created_at)`, tag)
	if err != nil {
		return fmt.Errorf("creating tag: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindTagByName(name string) (*model.Tag, error) {
	var t model.Tag
	err := s.db.GetContext(context.Background(), &t, `SELECT id, name, color, created_at FROM tags WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding tag: %w", err)
	}
	return &t, nil
}

func (s *SQLiteDatabase) ListTags() ([]*model.Tag, error) {
	var tags []*model.Tag
	err := s.db.SelectContext(context.Background(), &tags, `
		SELECT t.id, t.name, t.color, t.created_at, COUNT(ft.file_id) AS file_count
		FROM tags t LEFT JOIN file_tags ft ON ft.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) DeleteTag(id string) error {
	if _, err := s.db.ExecContext(context.Background(), `DELETE FROM tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindFileTags(fileID string) ([]*model.Tag, error) {
	var tags []*model.Tag
	err := s.db.SelectContext(context.Background(), &tags, `
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ?
		ORDER BY t.name`, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding file tags: %w", err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) SetFileTags(fileID string, tagIDs []string) error {
	return s.replaceLinks("file_tags", "file_id", fileID, tagIDs)
}

func (s *SQLiteDatabase) FindDeploymentTags(deploymentID string) ([]*model.Tag, error) {
	var tags []*model.Tag
	err := s.db.SelectContext(context.Background(), &tags, `
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t JOIN deployment_tags dt ON dt.tag_id = t.id
		WHERE dt.deployment_id = ?
		ORDER BY t.name`, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("finding deployment tags: %w", err)
	}
	return tags, nil
}

func (s *SQLiteDatabase) SetDeploymentTags(deploymentID string, tagIDs []string) error {
	return s.replaceLinks("deployment_tags", "deployment_id", deploymentID, tagIDs)
}

// replaceLinks swaps the full tag set of one owner row in a junction table.
// table and column are package constants, never user input.
func (s *SQLiteDatabase) replaceLinks(table, column, ownerID string, tagIDs []string) error {
	ctx := context.Background()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s transaction: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+column+` = ?`, ownerID); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+` (`+column+`, tag_id) VALUES (?, ?)`, ownerID, tagID); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	return nil
}

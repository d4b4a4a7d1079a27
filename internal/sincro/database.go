package sincro

import (
	"time"

	"sincro-go/internal/model"
)

// Database provides an interface for metadata storage operations.
// Find methods return nil, nil when the row does not exist.
type Database interface {
	// ManagedFile operations

	CreateFile(file *model.ManagedFile) error
	FindFile(id string) (*model.ManagedFile, error)
	// ListFiles returns every managed file, newest first, with tags populated.
	ListFiles() ([]*model.ManagedFile, error)
	UpdateFile(id string, update model.FileUpdate, at time.Time) error
	// DeleteFile removes the file row; its deployments and tag links cascade.
	DeleteFile(id string) error

	// Deployment operations

	CreateDeployment(d *model.Deployment) error
	FindDeployment(id string) (*model.Deployment, error)
	ListDeployments(fileID string) ([]*model.Deployment, error)
	ListActiveDeployments() ([]*model.Deployment, error)
	SetDeploymentActive(id string, active bool) error
	// MarkDeploymentSynced sets last_synced_at without touching the commit hash.
	MarkDeploymentSynced(id string, at time.Time) error
	// RecordDeploymentCommit sets both current_commit_hash and last_synced_at.
	RecordDeploymentCommit(id, hash string, at time.Time) error
	SetDeploymentCurrentCommit(id, hash string) error
	SetDeploymentDescription(id string, description *string) error
	DeleteDeployment(id string) error
	// CountDeployments returns the total and active deployment counts.
	CountDeployments() (total int, active int, err error)

	// Tag operations

	CreateTag(tag *model.Tag) error
	FindTagByName(name string) (*model.Tag, error)
	// ListTags returns all tags ordered by name with FileCount populated.
	ListTags() ([]*model.Tag, error)
	DeleteTag(id string) error
	FindFileTags(fileID string) ([]*model.Tag, error)
	SetFileTags(fileID string, tagIDs []string) error
	FindDeploymentTags(deploymentID string) ([]*model.Tag, error)
	SetDeploymentTags(deploymentID string, tagIDs []string) error

	// Close closes the database connection.
	Close() error
}

package sincro

import (
	"fmt"
	"strings"

	"sincro-go/internal/model"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6b7280"

// CreateTag creates a tag. Tag names are unique.
func (s *Service) CreateTag(name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is required: %w", ErrInvalidArgument)
	}
	if color == "" {
		color = DefaultTagColor
	}

	existing, err := s.database.FindTagByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("tag %q already exists: %w", name, ErrInvalidArgument)
	}

	tag := &model.Tag{
		ID:        s.idgen.New(),
		Name:      name,
		Color:     color,
		CreatedAt: s.clock.Now(),
	}
	if err := s.database.CreateTag(tag); err != nil {
		return nil, err
	}
	s.logger.Info("tag created", "id", tag.ID, "name", name)
	return tag, nil
}

// ListTags returns every tag with the number of files carrying it.
func (s *Service) ListTags() ([]*model.Tag, error) {
	return s.database.ListTags()
}

func (s *Service) DeleteTag(id string) error {
	if err := s.database.DeleteTag(id); err != nil {
		return err
	}
	s.logger.Info("tag deleted", "id", id)
	return nil
}

// SetFileTags replaces the tags on a file.
func (s *Service) SetFileTags(fileID string, tagIDs []string) error {
	if _, err := s.findFile(fileID); err != nil {
		return err
	}
	return s.database.SetFileTags(fileID, tagIDs)
}

func (s *Service) GetFileTags(fileID string) ([]*model.Tag, error) {
	if _, err := s.findFile(fileID); err != nil {
		return nil, err
	}
	return s.database.FindFileTags(fileID)
}

// SetDeploymentTags replaces the tags on a deployment.
func (s *Service) SetDeploymentTags(deploymentID string, tagIDs []string) error {
	if _, err := s.findDeployment(deploymentID); err != nil {
		return err
	}
	return s.database.SetDeploymentTags(deploymentID, tagIDs)
}

func (s *Service) GetDeploymentTags(deploymentID string) ([]*model.Tag, error) {
	if _, err := s.findDeployment(deploymentID); err != nil {
		return nil, err
	}
	return s.database.FindDeploymentTags(deploymentID)
}

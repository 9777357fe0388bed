package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
)

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type ProjectService struct {
	projectRepo *repo.ProjectRepo
}

func NewProjectService(projectRepo *repo.ProjectRepo) *ProjectService {
	return &ProjectService{projectRepo: projectRepo}
}

func (s *ProjectService) Create(ctx context.Context, tenantID string, input ProjectInput) (*model.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	project := &model.Project{
		ID:          newID(),
		TenantID:    tenantID,
		Name:        input.Name,
		Description: input.Description,
		Color:       input.Color,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, tenantID, projectID string) (*model.Project, error) {
	return s.projectRepo.GetByID(ctx, tenantID, projectID)
}

func (s *ProjectService) List(ctx context.Context, tenantID string) ([]*model.Project, error) {
	return s.projectRepo.List(ctx, tenantID)
}

func (s *ProjectService) Update(ctx context.Context, tenantID, projectID string, input ProjectInput) (*model.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) != "" {
		project.Name = input.Name
	}
	project.Description = input.Description
	project.Color = input.Color
	project.Mtime = time.Now().Unix()
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, tenantID, projectID string) error {
	return s.projectRepo.Delete(ctx, tenantID, projectID)
}

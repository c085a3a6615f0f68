package project

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
)

// ErrInvalidInput marks validation failures on project operations.
var ErrInvalidInput = errors.New("project: invalid input")

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	OwnerKey string
	Name     string
	Language string
}

// Service orchestrates project management.
type Service struct {
	projects repository.ProjectRepository
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, logger *slog.Logger) Service {
	return Service{projects: projects, logger: logger}
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a project name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStrip.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func defaultMainFile(lang domain.Language) string {
	switch lang {
	case domain.LanguagePython:
		return "/main.py"
	case domain.LanguageNodeJS:
		return "/index.js"
	case domain.LanguageTypeScript:
		return "/index.ts"
	default:
		return "/index.html"
	}
}

// Create registers a new project for the owner. The slug is derived from the
// name and must be unique per owner.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(input.OwnerKey) == "" {
		return nil, fmt.Errorf("%w: owner key required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: project name required", ErrInvalidInput)
	}
	lang := domain.Language(strings.ToLower(strings.TrimSpace(input.Language)))
	if !lang.Valid() {
		return nil, fmt.Errorf("%w: unknown language %q", ErrInvalidInput, input.Language)
	}
	slug := Slugify(input.Name)
	if slug == "" {
		return nil, fmt.Errorf("%w: project name yields empty slug", ErrInvalidInput)
	}

	now := time.Now().UTC()
	proj := &domain.Project{
		ID:           uuid.NewString(),
		OwnerKey:     input.OwnerKey,
		Name:         strings.TrimSpace(input.Name),
		Slug:         slug,
		Language:     lang,
		Status:       domain.StatusStopped,
		MainFilePath: defaultMainFile(lang),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.projects.CreateProject(ctx, proj); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", proj.ID, "slug", proj.Slug, "language", proj.Language)
	return proj, nil
}

// Get loads a project and verifies it belongs to the owner. A project owned
// by someone else is reported as not found.
func (s Service) Get(ctx context.Context, ownerKey, projectID string) (*domain.Project, error) {
	proj, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.OwnerKey != ownerKey {
		return nil, repository.ErrNotFound
	}
	return proj, nil
}

// GetBySlug loads the owner's project with the given slug.
func (s Service) GetBySlug(ctx context.Context, ownerKey, slug string) (*domain.Project, error) {
	return s.projects.GetProjectBySlug(ctx, ownerKey, slug)
}

// List returns all projects of an owner.
func (s Service) List(ctx context.Context, ownerKey string) ([]domain.Project, error) {
	if strings.TrimSpace(ownerKey) == "" {
		return nil, fmt.Errorf("%w: owner key required", ErrInvalidInput)
	}
	return s.projects.ListProjectsByOwner(ctx, ownerKey)
}

// SetMainFile updates the project's entry file path.
func (s Service) SetMainFile(ctx context.Context, ownerKey, projectID, mainFilePath string) (*domain.Project, error) {
	path := strings.TrimSpace(mainFilePath)
	if path == "" {
		return nil, fmt.Errorf("%w: main file path required", ErrInvalidInput)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	proj, err := s.Get(ctx, ownerKey, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateProjectMainFile(ctx, proj.ID, path); err != nil {
		return nil, err
	}
	proj.MainFilePath = path
	return proj, nil
}

// SetStatus transitions the project's lifecycle state.
func (s Service) SetStatus(ctx context.Context, ownerKey, projectID string, status domain.Status) (*domain.Project, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	proj, err := s.Get(ctx, ownerKey, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateProjectStatus(ctx, proj.ID, status); err != nil {
		return nil, err
	}
	s.logger.Info("project status changed", "project_id", proj.ID, "status", status)
	proj.Status = status
	return proj, nil
}

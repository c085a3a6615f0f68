package repository

import (
	"context"

	"github.com/vehosts/vehosts/internal/domain"
)

// ProjectRepository persists project records.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, ownerKey, slug string) (*domain.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerKey string) ([]domain.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID string, status domain.Status) error
	UpdateProjectMainFile(ctx context.Context, projectID, mainFilePath string) error
}

// FileRepository persists project file tree metadata.
type FileRepository interface {
	CreateFile(ctx context.Context, file *domain.ProjectFile) error
	UpdateFileContent(ctx context.Context, fileID string, content *string) error
	GetFileByPath(ctx context.Context, projectID, path string) (*domain.ProjectFile, error)
	ListFilesByProject(ctx context.Context, projectID string) ([]domain.ProjectFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// ConsoleLogRepository handles console log persistence and retrieval.
type ConsoleLogRepository interface {
	AppendConsoleLog(ctx context.Context, log *domain.ConsoleLog) error
	ListConsoleLogsByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.ConsoleLog, error)
}

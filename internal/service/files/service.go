package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/vehosts/vehosts/internal/artifact"
	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
)

// ErrInvalidInput marks validation failures on file tree operations.
var ErrInvalidInput = errors.New("files: invalid input")

// ErrParentNotDirectory indicates the referenced parent node is a file.
var ErrParentNotDirectory = errors.New("files: parent is not a directory")

// CreateInput describes a node to add to a project's file tree.
type CreateInput struct {
	Name        string
	ParentPath  string
	Content     *string
	IsDirectory bool
}

// Service maintains project file trees and mirrors file contents into the
// artifact store so the execution and preview services can fetch them.
type Service struct {
	files  repository.FileRepository
	store  artifact.Store
	logger *slog.Logger
}

// New returns a file service.
func New(files repository.FileRepository, store artifact.Store, logger *slog.Logger) Service {
	return Service{files: files, store: store, logger: logger}
}

// Create adds a file or directory to the project tree. Files are mirrored
// into the artifact store under the owner/slug prefix.
func (s Service) Create(ctx context.Context, proj *domain.Project, input CreateInput) (*domain.ProjectFile, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("%w: name must not contain path separators", ErrInvalidInput)
	}
	if input.IsDirectory && input.Content != nil {
		return nil, fmt.Errorf("%w: directories carry no content", ErrInvalidInput)
	}

	parentPath := normalizeParent(input.ParentPath)
	if parentPath != "" {
		parent, err := s.files.GetFileByPath(ctx, proj.ID, parentPath)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: parent %s does not exist", ErrInvalidInput, parentPath)
			}
			return nil, err
		}
		if !parent.IsDirectory {
			return nil, ErrParentNotDirectory
		}
	}

	now := time.Now().UTC()
	node := &domain.ProjectFile{
		ID:          uuid.NewString(),
		ProjectID:   proj.ID,
		Name:        name,
		Path:        parentPath + "/" + name,
		ParentPath:  parentPath,
		Content:     input.Content,
		IsDirectory: input.IsDirectory,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.files.CreateFile(ctx, node); err != nil {
		return nil, err
	}
	if !node.IsDirectory {
		if err := s.mirror(ctx, proj, node); err != nil {
			return nil, err
		}
	}
	s.logger.Info("file tree node created", "project_id", proj.ID, "path", node.Path, "directory", node.IsDirectory)
	return node, nil
}

// UpdateContent replaces a file's content and refreshes the mirrored artifact.
func (s Service) UpdateContent(ctx context.Context, proj *domain.Project, path string, content *string) (*domain.ProjectFile, error) {
	node, err := s.Get(ctx, proj.ID, path)
	if err != nil {
		return nil, err
	}
	if node.IsDirectory {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidInput, node.Path)
	}
	if err := s.files.UpdateFileContent(ctx, node.ID, content); err != nil {
		return nil, err
	}
	node.Content = content
	node.UpdatedAt = time.Now().UTC()
	if err := s.mirror(ctx, proj, node); err != nil {
		return nil, err
	}
	return node, nil
}

// Get loads one node by path.
func (s Service) Get(ctx context.Context, projectID, path string) (*domain.ProjectFile, error) {
	normalized := normalizePath(path)
	if normalized == "" {
		return nil, fmt.Errorf("%w: path required", ErrInvalidInput)
	}
	return s.files.GetFileByPath(ctx, projectID, normalized)
}

// List returns the full tree of a project.
func (s Service) List(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	return s.files.ListFilesByProject(ctx, projectID)
}

// Delete removes a node. Mirrored artifacts of files are removed best effort.
func (s Service) Delete(ctx context.Context, proj *domain.Project, path string) error {
	node, err := s.Get(ctx, proj.ID, path)
	if err != nil {
		return err
	}
	if node.IsDirectory {
		children, err := s.files.ListFilesByProject(ctx, proj.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.ParentPath == node.Path {
				return fmt.Errorf("%w: directory %s is not empty", ErrInvalidInput, node.Path)
			}
		}
	}
	if err := s.files.DeleteFile(ctx, node.ID); err != nil {
		return err
	}
	if !node.IsDirectory {
		key := artifact.Key(proj.OwnerKey, proj.Slug, node.Path)
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("mirrored artifact not removed", "project_id", proj.ID, "key", key, "error", err)
		}
	}
	return nil
}

func (s Service) mirror(ctx context.Context, proj *domain.Project, node *domain.ProjectFile) error {
	var data []byte
	if node.Content != nil {
		data = []byte(*node.Content)
	}
	key := artifact.Key(proj.OwnerKey, proj.Slug, node.Path)
	if err := s.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("mirror file %s: %w", node.Path, err)
	}
	return nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func normalizeParent(parent string) string {
	parent = strings.TrimSpace(parent)
	if parent == "" || parent == "/" {
		return ""
	}
	return normalizePath(parent)
}

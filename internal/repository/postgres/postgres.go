package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
)

// Repository implements the repository interfaces backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a repository over the provided pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02":
			return repository.ErrInvalidArgument
		case "23503":
			return repository.ErrNotFound
		case "23505":
			return repository.ErrConflict
		}
	}
	return err
}

// CreateProject inserts a project record.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, owner_key, name, url_slug, language, status, main_file, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		project.ID, project.OwnerKey, project.Name, project.Slug,
		string(project.Language), string(project.Status), project.MainFilePath,
		project.CreatedAt, project.UpdatedAt)
	return mapError(err)
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT id, owner_key, name, url_slug, language, status, main_file, created_at, updated_at
		FROM projects WHERE id = $1`
	return r.scanProject(r.pool.QueryRow(ctx, query, projectID))
}

// GetProjectBySlug fetches a project by its owner key and slug.
func (r *Repository) GetProjectBySlug(ctx context.Context, ownerKey, slug string) (*domain.Project, error) {
	const query = `SELECT id, owner_key, name, url_slug, language, status, main_file, created_at, updated_at
		FROM projects WHERE owner_key = $1 AND url_slug = $2`
	return r.scanProject(r.pool.QueryRow(ctx, query, ownerKey, slug))
}

func (r *Repository) scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var language, status string
	err := row.Scan(&p.ID, &p.OwnerKey, &p.Name, &p.Slug, &language, &status, &p.MainFilePath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	p.Language = domain.Language(language)
	p.Status = domain.Status(status)
	return &p, nil
}

// ListProjectsByOwner returns all projects for an owner key.
func (r *Repository) ListProjectsByOwner(ctx context.Context, ownerKey string) ([]domain.Project, error) {
	const query = `SELECT id, owner_key, name, url_slug, language, status, main_file, created_at, updated_at
		FROM projects WHERE owner_key = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerKey)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		var language, status string
		if err := rows.Scan(&p.ID, &p.OwnerKey, &p.Name, &p.Slug, &language, &status, &p.MainFilePath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Language = domain.Language(language)
		p.Status = domain.Status(status)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectStatus mutates only the lifecycle status.
func (r *Repository) UpdateProjectStatus(ctx context.Context, projectID string, status domain.Status) error {
	const query = `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID, string(status))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProjectMainFile changes the declared entry file.
func (r *Repository) UpdateProjectMainFile(ctx context.Context, projectID, mainFilePath string) error {
	const query = `UPDATE projects SET main_file = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID, mainFilePath)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateFile inserts a file tree node.
func (r *Repository) CreateFile(ctx context.Context, file *domain.ProjectFile) error {
	const query = `INSERT INTO project_files (id, project_id, file_name, file_path, parent_path, content, is_directory, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		file.ID, file.ProjectID, file.Name, file.Path, file.ParentPath,
		file.Content, file.IsDirectory, file.CreatedAt, file.UpdatedAt)
	return mapError(err)
}

// UpdateFileContent replaces the stored content of a file.
func (r *Repository) UpdateFileContent(ctx context.Context, fileID string, content *string) error {
	const query = `UPDATE project_files SET content = $2, updated_at = NOW() WHERE id = $1 AND NOT is_directory`
	tag, err := r.pool.Exec(ctx, query, fileID, content)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetFileByPath fetches a file node by its in-project path.
func (r *Repository) GetFileByPath(ctx context.Context, projectID, path string) (*domain.ProjectFile, error) {
	const query = `SELECT id, project_id, file_name, file_path, COALESCE(parent_path, ''), content, is_directory, created_at, updated_at
		FROM project_files WHERE project_id = $1 AND file_path = $2`
	var f domain.ProjectFile
	err := r.pool.QueryRow(ctx, query, projectID, path).Scan(
		&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.ParentPath, &f.Content, &f.IsDirectory, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &f, nil
}

// ListFilesByProject returns the full file tree for a project.
func (r *Repository) ListFilesByProject(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	const query = `SELECT id, project_id, file_name, file_path, COALESCE(parent_path, ''), content, is_directory, created_at, updated_at
		FROM project_files WHERE project_id = $1 ORDER BY file_path`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var files []domain.ProjectFile
	for rows.Next() {
		var f domain.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.ParentPath, &f.Content, &f.IsDirectory, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a file node.
func (r *Repository) DeleteFile(ctx context.Context, fileID string) error {
	const query = `DELETE FROM project_files WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, fileID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AppendConsoleLog persists one console record and backfills the assigned
// ID and server timestamp.
func (r *Repository) AppendConsoleLog(ctx context.Context, log *domain.ConsoleLog) error {
	const query = `INSERT INTO console_logs (project_id, log_type, message)
		VALUES ($1, $2, $3) RETURNING id, timestamp`
	err := r.pool.QueryRow(ctx, query, log.ProjectID, string(log.LogType), log.Message).
		Scan(&log.ID, &log.Timestamp)
	return mapError(err)
}

// ListConsoleLogsByProject fetches logs for a project in insertion order.
func (r *Repository) ListConsoleLogsByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.ConsoleLog, error) {
	const query = `SELECT id, project_id, log_type, message, timestamp
		FROM console_logs WHERE project_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var logs []domain.ConsoleLog
	for rows.Next() {
		var l domain.ConsoleLog
		var logType string
		if err := rows.Scan(&l.ID, &l.ProjectID, &logType, &l.Message, &l.Timestamp); err != nil {
			return nil, err
		}
		l.LogType = domain.LogType(logType)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

package httpx

import (
	"time"

	"github.com/vehosts/vehosts/internal/domain"
)

type projectView struct {
	ID        string `json:"id"`
	OwnerKey  string `json:"owner_key"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Language  string `json:"language"`
	Status    string `json:"status"`
	MainFile  string `json:"main_file"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newProjectView(p *domain.Project) projectView {
	return projectView{
		ID:        p.ID,
		OwnerKey:  p.OwnerKey,
		Name:      p.Name,
		Slug:      p.Slug,
		Language:  string(p.Language),
		Status:    string(p.Status),
		MainFile:  p.MainFilePath,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newProjectViews(projects []domain.Project) []projectView {
	views := make([]projectView, 0, len(projects))
	for i := range projects {
		views = append(views, newProjectView(&projects[i]))
	}
	return views
}

type fileView struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	ParentPath  string  `json:"parent_path"`
	Content     *string `json:"content"`
	IsDirectory bool    `json:"is_directory"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func newFileView(f *domain.ProjectFile) fileView {
	return fileView{
		ID:          f.ID,
		ProjectID:   f.ProjectID,
		Name:        f.Name,
		Path:        f.Path,
		ParentPath:  f.ParentPath,
		Content:     f.Content,
		IsDirectory: f.IsDirectory,
		CreatedAt:   f.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   f.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newFileViews(nodes []domain.ProjectFile) []fileView {
	views := make([]fileView, 0, len(nodes))
	for i := range nodes {
		views = append(views, newFileView(&nodes[i]))
	}
	return views
}

type logView struct {
	ID        int64  `json:"id"`
	ProjectID string `json:"project_id"`
	LogType   string `json:"log_type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func newLogView(entry *domain.ConsoleLog) logView {
	return logView{
		ID:        entry.ID,
		ProjectID: entry.ProjectID,
		LogType:   string(entry.LogType),
		Message:   entry.Message,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func newLogViews(entries []domain.ConsoleLog) []logView {
	views := make([]logView, 0, len(entries))
	for i := range entries {
		views = append(views, newLogView(&entries[i]))
	}
	return views
}

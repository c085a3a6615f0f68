package domain

import "time"

// ProjectFile is a node in a project's file tree. Directories carry no
// content; ParentPath is empty for root-level entries.
type ProjectFile struct {
	ID          string
	ProjectID   string
	Name        string
	Path        string
	ParentPath  string
	Content     *string
	IsDirectory bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

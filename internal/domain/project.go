package domain

import "time"

// Language identifies the runtime a project is built for.
type Language string

// Supported project languages. Node.js and TypeScript exist in the data model
// but have no execution backend yet.
const (
	LanguagePython     Language = "python"
	LanguageHTML       Language = "html"
	LanguageNodeJS     Language = "nodejs"
	LanguageTypeScript Language = "typescript"
	LanguageProfile    Language = "profile"
)

// Valid reports whether the language is a known value.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageHTML, LanguageNodeJS, LanguageTypeScript, LanguageProfile:
		return true
	}
	return false
}

// Executable reports whether the language has a script execution backend.
func (l Language) Executable() bool {
	return l == LanguagePython
}

// Status describes the lifecycle state of a project.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusStopped, StatusStarting, StatusRunning, StatusError:
		return true
	}
	return false
}

// Project describes a hosted user project.
type Project struct {
	ID           string
	OwnerKey     string
	Name         string
	Slug         string
	Language     Language
	Status       Status
	MainFilePath string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

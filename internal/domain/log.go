package domain

import "time"

// LogType classifies a console log record.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
	LogOutput  LogType = "output"
)

// Valid reports whether the log type is a known value.
func (t LogType) Valid() bool {
	switch t {
	case LogInfo, LogSuccess, LogError, LogOutput:
		return true
	}
	return false
}

// ConsoleLog is one immutable record of a project run, ordered by ID.
type ConsoleLog struct {
	ID        int64
	ProjectID string
	LogType   LogType
	Message   string
	Timestamp time.Time
}

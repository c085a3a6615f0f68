package console

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
	"github.com/vehosts/vehosts/internal/ws"
)

var (
	errMissingProjectID = errors.New("project id required")
	errInvalidLogType   = errors.New("unknown log type")
)

// Service persists console log records and streams them to subscribers.
type Service struct {
	repo   repository.ConsoleLogRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a console service.
func New(repo repository.ConsoleLogRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Emit appends one record and broadcasts it. Records are immutable and
// ordered by the database-assigned ID.
func (s Service) Emit(ctx context.Context, projectID string, logType domain.LogType, message string) (*domain.ConsoleLog, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errMissingProjectID
	}
	if !logType.Valid() {
		return nil, errInvalidLogType
	}
	entry := &domain.ConsoleLog{
		ProjectID: projectID,
		LogType:   logType,
		Message:   message,
	}
	if err := s.repo.AppendConsoleLog(ctx, entry); err != nil {
		return nil, err
	}
	s.broadcast(entry)
	return entry, nil
}

// List returns logs for a project in creation order.
func (s Service) List(ctx context.Context, projectID string, limit, offset int) ([]domain.ConsoleLog, error) {
	return s.repo.ListConsoleLogsByProject(ctx, projectID, limit, offset)
}

// Hub returns the websocket hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) broadcast(entry *domain.ConsoleLog) {
	data, err := MarshalEntry(entry)
	if err != nil {
		s.logger.Warn("failed to marshal console payload", "error", err)
		return
	}
	s.hub.Broadcast(entry.ProjectID, data)
}

// MarshalEntry formats a console log for streaming payloads.
func MarshalEntry(entry *domain.ConsoleLog) ([]byte, error) {
	payload := map[string]any{
		"id":         entry.ID,
		"project_id": entry.ProjectID,
		"log_type":   string(entry.LogType),
		"message":    entry.Message,
		"timestamp":  entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	return json.Marshal(payload)
}

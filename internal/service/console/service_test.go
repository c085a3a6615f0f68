package console

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/ws"
)

type stubLogRepository struct {
	appended []domain.ConsoleLog
	nextID   int64
}

func (s *stubLogRepository) AppendConsoleLog(ctx context.Context, log *domain.ConsoleLog) error {
	s.nextID++
	log.ID = s.nextID
	log.Timestamp = time.Now().UTC()
	s.appended = append(s.appended, *log)
	return nil
}

func (s *stubLogRepository) ListConsoleLogsByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.ConsoleLog, error) {
	return append([]domain.ConsoleLog(nil), s.appended...), nil
}

func newTestService(repo *stubLogRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, ws.NewHub(), log)
}

func TestEmitAssignsOrderedIDs(t *testing.T) {
	repo := &stubLogRepository{}
	svc := newTestService(repo)

	first, err := svc.Emit(context.Background(), "project-1", domain.LogInfo, "installing dependencies")
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	second, err := svc.Emit(context.Background(), "project-1", domain.LogInfo, "execution finished")
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if first.ID >= second.ID {
		t.Fatalf("expected ordered IDs, got %d then %d", first.ID, second.ID)
	}
}

func TestEmitRejectsUnknownLogType(t *testing.T) {
	svc := newTestService(&stubLogRepository{})

	if _, err := svc.Emit(context.Background(), "project-1", domain.LogType("debug"), "nope"); err == nil {
		t.Fatalf("expected error for unknown log type")
	}
}

func TestEmitRequiresProjectID(t *testing.T) {
	svc := newTestService(&stubLogRepository{})

	if _, err := svc.Emit(context.Background(), "  ", domain.LogInfo, "msg"); err == nil {
		t.Fatalf("expected error for missing project id")
	}
}

func TestEmitAllowsRepeatedMessages(t *testing.T) {
	repo := &stubLogRepository{}
	svc := newTestService(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.Emit(context.Background(), "project-1", domain.LogOutput, "hello\n"); err != nil {
			t.Fatalf("Emit returned error: %v", err)
		}
	}
	if len(repo.appended) != 3 {
		t.Fatalf("expected 3 independent records, got %d", len(repo.appended))
	}
}

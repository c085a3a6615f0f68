package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vehosts/vehosts/internal/artifact"
	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/runner/installer"
	"github.com/vehosts/vehosts/internal/runner/workspace"
	"github.com/vehosts/vehosts/pkg/config"
)

// failingInstaller swaps pip for /bin/false so every install attempt reports
// a non-zero exit.
func failingInstaller(t *testing.T) installer.Installer {
	t.Helper()
	return installer.New("false", time.Second)
}

type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *stubStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return data, nil
}

func (s *stubStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error { return nil }

type recordedLog struct {
	logType domain.LogType
	message string
}

type recorderLogger struct {
	mu      sync.Mutex
	records []recordedLog
}

func (r *recorderLogger) Emit(ctx context.Context, projectID string, logType domain.LogType, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, recordedLog{logType: logType, message: message})
	return nil
}

func (r *recorderLogger) snapshot() []recordedLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedLog(nil), r.records...)
}

// newTestService builds a service whose "interpreter" is sh, so entry files
// are plain shell scripts and tests need no Python toolchain.
func newTestService(t *testing.T, store *stubStore, console Logger) (Service, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.New(root)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.RunnerConfig{
		PythonBin:      "sh",
		PipBin:         "true",
		ExecTimeout:    10 * time.Second,
		InstallTimeout: 10 * time.Second,
	}
	return New(store, ws, console, log, cfg), root
}

func request() Request {
	return Request{
		ProjectID: "project-1",
		OwnerKey:  "owner-1",
		Slug:      "my-app",
		MainFile:  "/main.py",
	}
}

func assertWorkspaceEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty workspace root, found %d entries", len(entries))
	}
}

func TestRunSuccessEmitsOrderedLogs(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{
		"owner-1/my-app/main.py": []byte("echo hello\n"),
	}}
	console := &recorderLogger{}
	svc, root := newTestService(t, store, console)

	result, err := svc.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success || result.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
	assertWorkspaceEmpty(t, root)

	records := console.snapshot()
	wantTypes := []domain.LogType{
		domain.LogInfo,    // starting
		domain.LogInfo,    // no requirements.txt found
		domain.LogInfo,    // executing
		domain.LogSuccess, // exit 0
		domain.LogOutput,  // hello
		domain.LogInfo,    // finished
	}
	if len(records) != len(wantTypes) {
		t.Fatalf("expected %d records, got %d: %+v", len(wantTypes), len(records), records)
	}
	for i, want := range wantTypes {
		if records[i].logType != want {
			t.Fatalf("record %d: expected type %s, got %s (%q)", i, want, records[i].logType, records[i].message)
		}
	}
	if records[4].message != "hello\n" {
		t.Fatalf("output record should carry captured stdout, got %q", records[4].message)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{
		"owner-1/my-app/main.py": []byte("echo boom >&2\nexit 3\n"),
	}}
	console := &recorderLogger{}
	svc, root := newTestService(t, store, console)

	result, err := svc.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure result")
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Stderr != "boom\n" {
		t.Fatalf("unexpected stderr %q", result.Stderr)
	}
	assertWorkspaceEmpty(t, root)
}

func TestRunMissingEntryFile(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{}}
	console := &recorderLogger{}
	svc, root := newTestService(t, store, console)

	_, err := svc.Run(context.Background(), request())
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if len(console.snapshot()) != 0 {
		t.Fatalf("missing entry file must not emit console records")
	}
	assertWorkspaceEmpty(t, root)
}

func TestRunInstallFailureDoesNotAbort(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{
		"owner-1/my-app/main.py":          []byte("echo still-ran\n"),
		"owner-1/my-app/requirements.txt": []byte("no-such-package\n"),
	}}
	console := &recorderLogger{}
	svc, root := newTestService(t, store, console)
	svc.installer = failingInstaller(t)

	result, err := svc.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("script result must be independent of install failure, got %+v", result)
	}
	if result.Stdout != "still-ran\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}

	var sawInstallError bool
	var installErrorIdx, finishedIdx int
	records := console.snapshot()
	for i, rec := range records {
		if rec.logType == domain.LogError {
			sawInstallError = true
			installErrorIdx = i
		}
		if rec.message == "execution finished" {
			finishedIdx = i
		}
	}
	if !sawInstallError {
		t.Fatalf("expected an error record for the failed install: %+v", records)
	}
	if installErrorIdx >= finishedIdx {
		t.Fatalf("install error must precede the finished record")
	}
	assertWorkspaceEmpty(t, root)
}

func TestRunTimeoutCleansSandbox(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{
		"owner-1/my-app/main.py": []byte("sleep 5\n"),
	}}
	console := &recorderLogger{}
	svc, root := newTestService(t, store, console)
	svc.cfg.ExecTimeout = 100 * time.Millisecond

	result, err := svc.Run(context.Background(), request())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Success {
		t.Fatalf("timed out run must not be successful")
	}
	assertWorkspaceEmpty(t, root)
}

func TestRunRejectsConcurrentRunForSameProject(t *testing.T) {
	store := &stubStore{objects: map[string][]byte{
		"owner-1/my-app/main.py": []byte("sleep 1\n"),
	}}
	console := &recorderLogger{}
	svc, _ := newTestService(t, store, console)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Run(context.Background(), request())
	}()

	time.Sleep(200 * time.Millisecond)
	_, err := svc.Run(context.Background(), request())
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	<-done
}

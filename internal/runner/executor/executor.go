package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"log/slog"

	"github.com/vehosts/vehosts/internal/artifact"
	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/runner/installer"
	"github.com/vehosts/vehosts/internal/runner/workspace"
	"github.com/vehosts/vehosts/pkg/config"
)

const entryFileName = "main.py"

// ErrEntryNotFound indicates the project's declared main file is absent from
// the artifact store. Terminal: no sandbox is created.
var ErrEntryNotFound = errors.New("executor: entry file not found")

// ErrRunInProgress indicates the project already has an active run.
var ErrRunInProgress = errors.New("executor: run already in progress")

// ErrInvalidRequest indicates a run request with missing identity fields.
var ErrInvalidRequest = errors.New("executor: invalid request")

// Request identifies the project to execute.
type Request struct {
	ProjectID string `json:"project_id"`
	OwnerKey  string `json:"owner_key"`
	Slug      string `json:"project_slug"`
	MainFile  string `json:"main_file"`
}

// Result is the synchronous outcome of one run.
type Result struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"output"`
	Stderr   string `json:"error"`
	ExitCode int    `json:"exitCode"`
}

// Logger streams ordered console records for a run.
type Logger interface {
	Emit(ctx context.Context, projectID string, logType domain.LogType, message string) error
}

// Service executes untrusted project scripts inside ephemeral sandboxes.
type Service struct {
	store     artifact.Store
	workspace *workspace.Manager
	installer installer.Installer
	console   Logger
	logger    *slog.Logger
	cfg       config.RunnerConfig
	inflight  *sync.Map
}

// New creates an execution service.
func New(store artifact.Store, ws *workspace.Manager, console Logger, logger *slog.Logger, cfg config.RunnerConfig) Service {
	return Service{
		store:     store,
		workspace: ws,
		installer: installer.New(cfg.PipBin, cfg.InstallTimeout),
		console:   console,
		logger:    logger,
		cfg:       cfg,
		inflight:  &sync.Map{},
	}
}

// Run executes the project's entry file and returns the captured outcome.
// Console records are emitted as a side effect in a fixed order per run.
// Only one run per project may be active at a time.
func (s Service) Run(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if _, loaded := s.inflight.LoadOrStore(req.ProjectID, struct{}{}); loaded {
		return Result{}, ErrRunInProgress
	}
	defer s.inflight.Delete(req.ProjectID)

	// The entry file is resolved before any sandbox or log side effect so
	// a missing file leaves no trace beyond the returned error.
	entryKey := artifact.Key(req.OwnerKey, req.Slug, req.MainFile)
	code, err := s.store.Get(ctx, entryKey)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return Result{}, ErrEntryNotFound
		}
		return Result{}, fmt.Errorf("fetch entry file: %w", err)
	}

	s.emit(ctx, req.ProjectID, domain.LogInfo, fmt.Sprintf("starting python run for %s", req.MainFile))

	sandbox, err := s.workspace.Prepare()
	if err != nil {
		s.emit(ctx, req.ProjectID, domain.LogError, "failed to prepare sandbox")
		return Result{}, fmt.Errorf("prepare sandbox: %w", err)
	}
	defer func() {
		if err := s.workspace.Cleanup(sandbox); err != nil {
			s.logger.Error("sandbox cleanup failed", "project_id", req.ProjectID, "dir", sandbox, "error", err)
		}
	}()

	entryPath := filepath.Join(sandbox, entryFileName)
	if err := os.WriteFile(entryPath, code, 0o644); err != nil {
		s.emit(ctx, req.ProjectID, domain.LogError, "failed to materialize entry file")
		return Result{}, fmt.Errorf("write entry file: %w", err)
	}

	s.installDependencies(ctx, req, sandbox)

	s.emit(ctx, req.ProjectID, domain.LogInfo, "executing program")
	result, timedOut := s.execute(ctx, sandbox, entryPath)

	switch {
	case timedOut:
		s.emit(ctx, req.ProjectID, domain.LogError, fmt.Sprintf("execution timed out after %s", s.cfg.ExecTimeout))
	case result.Success:
		s.emit(ctx, req.ProjectID, domain.LogSuccess, "program finished successfully (exit code 0)")
	default:
		s.emit(ctx, req.ProjectID, domain.LogError, fmt.Sprintf("program failed (exit code %d)", result.ExitCode))
	}
	if result.Stdout != "" {
		s.emit(ctx, req.ProjectID, domain.LogOutput, result.Stdout)
	}
	if result.Stderr != "" {
		s.emit(ctx, req.ProjectID, domain.LogError, result.Stderr)
	}
	s.emit(ctx, req.ProjectID, domain.LogInfo, "execution finished")

	return result, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.ProjectID) == "" {
		return fmt.Errorf("%w: project id required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.OwnerKey) == "" {
		return fmt.Errorf("%w: owner key required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Slug) == "" {
		return fmt.Errorf("%w: project slug required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.MainFile) == "" {
		return fmt.Errorf("%w: main file required", ErrInvalidRequest)
	}
	return nil
}

// Health verifies the sandbox root is usable.
func (s Service) Health(ctx context.Context) error {
	return s.workspace.Health(ctx)
}

// installDependencies runs the best-effort pip step. Install failures are
// reported through the console and never abort the run.
func (s Service) installDependencies(ctx context.Context, req Request, sandbox string) {
	manifest, err := s.store.Get(ctx, artifact.RequirementsKey(req.OwnerKey, req.Slug))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			s.emit(ctx, req.ProjectID, domain.LogInfo, "no requirements.txt found")
		} else {
			s.logger.Warn("requirements lookup failed", "project_id", req.ProjectID, "error", err)
			s.emit(ctx, req.ProjectID, domain.LogError, "failed to check for requirements.txt")
		}
		return
	}

	s.emit(ctx, req.ProjectID, domain.LogInfo, "installing dependencies from requirements.txt")
	result, err := s.installer.Install(ctx, sandbox, manifest)
	if err != nil {
		s.emit(ctx, req.ProjectID, domain.LogError, fmt.Sprintf("dependency install could not start: %v", err))
		return
	}
	if result.OK {
		s.emit(ctx, req.ProjectID, domain.LogSuccess, "dependencies installed")
		if out := strings.TrimSpace(result.Stdout); out != "" {
			s.emit(ctx, req.ProjectID, domain.LogInfo, out)
		}
		return
	}
	s.emit(ctx, req.ProjectID, domain.LogError, "dependency install failed:\n"+result.Stderr)
	if out := strings.TrimSpace(result.Stdout); out != "" {
		s.emit(ctx, req.ProjectID, domain.LogInfo, out)
	}
}

// execute spawns the interpreter with the sandbox as working directory and
// captures complete stdout/stderr streams.
func (s Service) execute(ctx context.Context, sandbox, entryPath string) (Result, bool) {
	runCtx := ctx
	if s.cfg.ExecTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.ExecTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, s.cfg.PythonBin, entryPath)
	cmd.Dir = sandbox
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	return Result{
		Success:  err == nil && !timedOut,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, timedOut
}

func (s Service) emit(ctx context.Context, projectID string, logType domain.LogType, message string) {
	if s.console == nil {
		return
	}
	if err := s.console.Emit(ctx, projectID, logType, message); err != nil {
		s.logger.Warn("console emit failed", "project_id", projectID, "log_type", logType, "error", err)
	}
}

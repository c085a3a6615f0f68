package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
	"github.com/vehosts/vehosts/internal/runner/executor"
	"github.com/vehosts/vehosts/pkg/config"
)

// ErrNotExecutable indicates the project's language has no execution backend.
var ErrNotExecutable = errors.New("run: project language is not executable")

// ErrEntryNotFound indicates the execution service could not find the
// project's main file.
var ErrEntryNotFound = errors.New("run: main file not found")

// ErrRunInProgress indicates the project already has an active run.
var ErrRunInProgress = errors.New("run: run already in progress")

// ErrRunnerUnavailable indicates the execution service could not be reached.
var ErrRunnerUnavailable = errors.New("run: execution service unavailable")

// Service triggers project runs on the execution service and keeps project
// lifecycle status in sync with the outcome.
type Service struct {
	projects repository.ProjectRepository
	client   *http.Client
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New returns a run service.
func New(projects repository.ProjectRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		projects: projects,
		client:   &http.Client{Timeout: cfg.RunnerCallTimeout},
		logger:   logger,
		cfg:      cfg,
	}
}

// Start activates a project. Static projects are marked running and served
// directly. Executable projects are forwarded to the execution service and
// the run outcome decides the final status.
func (s Service) Start(ctx context.Context, ownerKey, projectID string) (*executor.Result, error) {
	proj, err := s.ownedProject(ctx, ownerKey, projectID)
	if err != nil {
		return nil, err
	}

	if !proj.Language.Executable() {
		switch proj.Language {
		case domain.LanguageHTML, domain.LanguageProfile:
			if err := s.projects.UpdateProjectStatus(ctx, proj.ID, domain.StatusRunning); err != nil {
				return nil, err
			}
			s.logger.Info("project started", "project_id", proj.ID, "language", proj.Language)
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotExecutable, proj.Language)
		}
	}

	if err := s.projects.UpdateProjectStatus(ctx, proj.ID, domain.StatusStarting); err != nil {
		return nil, err
	}
	result, err := s.dispatch(ctx, proj)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			// Another run owns the status; leave it alone.
			return nil, err
		}
		if statusErr := s.projects.UpdateProjectStatus(ctx, proj.ID, domain.StatusError); statusErr != nil {
			s.logger.Error("status update failed", "project_id", proj.ID, "error", statusErr)
		}
		return nil, err
	}

	final := domain.StatusStopped
	if !result.Success {
		final = domain.StatusError
	}
	if err := s.projects.UpdateProjectStatus(ctx, proj.ID, final); err != nil {
		s.logger.Error("status update failed", "project_id", proj.ID, "error", err)
	}
	s.logger.Info("run finished", "project_id", proj.ID, "success", result.Success, "exit_code", result.ExitCode)
	return result, nil
}

// Stop marks a project as stopped.
func (s Service) Stop(ctx context.Context, ownerKey, projectID string) (*domain.Project, error) {
	proj, err := s.ownedProject(ctx, ownerKey, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateProjectStatus(ctx, proj.ID, domain.StatusStopped); err != nil {
		return nil, err
	}
	proj.Status = domain.StatusStopped
	s.logger.Info("project stopped", "project_id", proj.ID)
	return proj, nil
}

func (s Service) ownedProject(ctx context.Context, ownerKey, projectID string) (*domain.Project, error) {
	proj, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.OwnerKey != ownerKey {
		return nil, repository.ErrNotFound
	}
	return proj, nil
}

// dispatch performs the synchronous run call against the execution service.
func (s Service) dispatch(ctx context.Context, proj *domain.Project) (*executor.Result, error) {
	payload, err := json.Marshal(executor.Request{
		ProjectID: proj.ID,
		OwnerKey:  proj.OwnerKey,
		Slug:      proj.Slug,
		MainFile:  proj.MainFilePath,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.RunnerURL+"/run", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.RunnerAuthToken != "" {
		req.Header.Set("X-Runner-Token", s.cfg.RunnerAuthToken)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("runner request failed", "project_id", proj.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRunnerUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrEntryNotFound
	case http.StatusConflict:
		return nil, ErrRunInProgress
	default:
		s.logger.Error("runner returned error", "project_id", proj.ID, "status", resp.Status)
		return nil, fmt.Errorf("%w: %s", ErrRunnerUnavailable, resp.Status)
	}

	var result executor.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	return &result, nil
}

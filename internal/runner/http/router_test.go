package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"

	"github.com/vehosts/vehosts/internal/runner/executor"
)

type stubRunService struct {
	result executor.Result
	err    error
	health error
	last   executor.Request
}

func (s *stubRunService) Run(ctx context.Context, req executor.Request) (executor.Result, error) {
	s.last = req
	return s.result, s.err
}

func (s *stubRunService) Health(ctx context.Context) error { return s.health }

func newTestRouter(svc *stubRunService, token string) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, svc, token)
}

func runBody() string {
	return `{"project_id":"p1","owner_key":"o1","project_slug":"app","main_file":"/main.py"}`
}

func TestHandleRunReturnsResult(t *testing.T) {
	svc := &stubRunService{result: executor.Result{Success: true, Stdout: "hi\n", ExitCode: 0}}
	router := newTestRouter(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(runBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result executor.Result
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Stdout != "hi\n" {
		t.Fatalf("unexpected result %+v", result)
	}
	if svc.last.ProjectID != "p1" {
		t.Fatalf("request not forwarded, got %+v", svc.last)
	}
}

func TestHandleRunErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", executor.ErrInvalidRequest, http.StatusBadRequest},
		{"missing entry", executor.ErrEntryNotFound, http.StatusNotFound},
		{"in progress", executor.ErrRunInProgress, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubRunService{err: tc.err}, "")
			req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(runBody()))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleRunRequiresToken(t *testing.T) {
	router := newTestRouter(&stubRunService{result: executor.Result{Success: true}}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(runBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(runBody()))
	req.Header.Set("X-Runner-Token", "secret-but-wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(runBody()))
	req.Header.Set("X-Runner-Token", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	router := newTestRouter(&stubRunService{health: context.DeadlineExceeded}, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

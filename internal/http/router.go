package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vehosts/vehosts/internal/domain"
	"github.com/vehosts/vehosts/internal/repository"
	"github.com/vehosts/vehosts/internal/service/console"
	"github.com/vehosts/vehosts/internal/service/files"
	"github.com/vehosts/vehosts/internal/service/preview"
	"github.com/vehosts/vehosts/internal/service/project"
	"github.com/vehosts/vehosts/internal/service/run"
	"github.com/vehosts/vehosts/internal/ws"
	"github.com/vehosts/vehosts/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux                *http.ServeMux
	logger             *slog.Logger
	project            project.Service
	files              files.Service
	run                run.Service
	console            console.Service
	preview            preview.Service
	upgrader           websocket.Upgrader
	limiter            RateLimiter
	runnerToken        string
	dbHealth           func(context.Context) error
	cfg                config.APIConfig
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault   = time.Minute
	rateWindowRealtime  = 30 * time.Second
	rateLimitUserWrite  = 60
	rateLimitUserRead   = 120
	rateLimitWebsocket  = 30
	rateLimitPreview    = 240
	rateLimitRunnerPush = 600
	healthCheckTimeout  = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, projectSvc project.Service, fileSvc files.Service, runSvc run.Service, consoleSvc console.Service, previewSvc preview.Service, limiter RateLimiter, cfg config.APIConfig, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		project: projectSvc,
		files:   fileSvc,
		run:     runSvc,
		console: consoleSvc,
		preview: previewSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:     limiter,
		runnerToken: strings.TrimSpace(cfg.RunnerAuthToken),
		dbHealth:    dbHealth,
		cfg:         cfg,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.handlerAuthRate("/projects", rateLimitUserWrite, rateWindowDefault, r.handleProjects)))
	r.mux.HandleFunc("/projects/", r.audit("/projects/:id", r.handlerAuthRate("/projects/:id", rateLimitUserWrite, rateWindowDefault, r.handleProjectSubroutes)))
	r.mux.HandleFunc("/logs/", r.audit("/logs/:project_id", r.handleLogs))
	r.mux.HandleFunc("/ws/logs", r.audit("/ws/logs", r.handlerAuthRate("/ws/logs", rateLimitWebsocket, rateWindowRealtime, r.handleLogsWS)))
	r.mux.HandleFunc("/preview/", r.audit("/preview/:owner/:slug", r.withRateLimit("/preview", rateLimitPreview, rateWindowDefault, rateLimitKeyIP, r.handlePreview)))
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for project route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name     string `json:"name"`
			Language string `json:"language"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.project.Create(req.Context(), project.CreateInput{
			OwnerKey: info.OwnerKey,
			Name:     payload.Name,
			Language: payload.Language,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newProjectView(proj))
	case http.MethodGet:
		projects, err := r.project.List(req.Context(), info.OwnerKey)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newProjectViews(projects))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/projects/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 1 || parts[0] == "" {
		r.notFound(w)
		return
	}
	projectID := parts[0]
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for project subroute", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}

	if len(parts) == 1 {
		r.handleProjectItem(w, req, info, projectID)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "run":
			r.handleProjectRun(w, req, info, projectID)
			return
		case "stop":
			r.handleProjectStop(w, req, info, projectID)
			return
		case "files":
			r.handleProjectFiles(w, req, info, projectID)
			return
		}
	}
	r.notFound(w)
}

func (r *Router) handleProjectItem(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	switch req.Method {
	case http.MethodGet:
		proj, err := r.project.Get(req.Context(), info.OwnerKey, projectID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newProjectView(proj))
	case http.MethodPatch:
		var payload struct {
			MainFile string `json:"main_file"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.project.SetMainFile(req.Context(), info.OwnerKey, projectID, payload.MainFile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newProjectView(proj))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectRun(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.run.Start(req.Context(), info.OwnerKey, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusRunning)})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleProjectStop(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	proj, err := r.run.Stop(req.Context(), info.OwnerKey, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProjectView(proj))
}

func (r *Router) handleProjectFiles(w http.ResponseWriter, req *http.Request, info authInfo, projectID string) {
	proj, err := r.project.Get(req.Context(), info.OwnerKey, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch req.Method {
	case http.MethodGet:
		nodes, err := r.files.List(req.Context(), proj.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newFileViews(nodes))
	case http.MethodPost:
		var payload struct {
			Name        string  `json:"name"`
			ParentPath  string  `json:"parent_path"`
			Content     *string `json:"content"`
			IsDirectory bool    `json:"is_directory"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		node, err := r.files.Create(req.Context(), proj, files.CreateInput{
			Name:        payload.Name,
			ParentPath:  payload.ParentPath,
			Content:     payload.Content,
			IsDirectory: payload.IsDirectory,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newFileView(node))
	case http.MethodPut:
		var payload struct {
			Path    string  `json:"path"`
			Content *string `json:"content"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		node, err := r.files.UpdateContent(req.Context(), proj, payload.Path, payload.Content)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newFileView(node))
	case http.MethodDelete:
		path := req.URL.Query().Get("path")
		if path == "" {
			writeError(w, http.StatusBadRequest, "path query parameter required")
			return
		}
		if err := r.files.Delete(req.Context(), proj, path); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	projectID := strings.TrimPrefix(req.URL.Path, "/logs/")
	if projectID == "" || strings.Contains(projectID, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		ctx, info, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		req = req.WithContext(ctx)
		key := r.rateLimitKeyUser(req)
		if key == "" {
			key = rateLimitKeyIP(req)
		}
		decision := r.limiter.Allow(key, rateLimitUserRead, rateWindowDefault)
		r.applyRateHeaders(w, rateLimitUserRead, decision)
		if !decision.allowed {
			r.recordRateLimitHit("/logs/:project_id", rateMetricKey(key))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if _, err := r.project.Get(req.Context(), info.OwnerKey, projectID); err != nil {
			writeServiceError(w, err)
			return
		}
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 100
		}
		offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
		if offset < 0 {
			offset = 0
		}
		entries, err := r.console.List(req.Context(), projectID, limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newLogViews(entries))
	case http.MethodPost:
		if !r.verifyRunnerToken(w, req) {
			return
		}
		runnerKey := "runner:" + projectID
		decision := r.limiter.Allow(runnerKey, rateLimitRunnerPush, rateWindowDefault)
		r.applyRateHeaders(w, rateLimitRunnerPush, decision)
		if !decision.allowed {
			r.recordRateLimitHit("/logs/:project_id", "runner")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		var payload struct {
			LogType string `json:"log_type"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(payload.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		entry, err := r.console.Emit(req.Context(), projectID, domain.LogType(payload.LogType), payload.Message)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "unknown project")
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, newLogView(entry))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleLogsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for logs websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	projectID := req.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	if _, err := r.project.Get(req.Context(), info.OwnerKey, projectID); err != nil {
		writeServiceError(w, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.console.Hub().Register(projectID, client)
	go func() {
		defer func() {
			r.console.Hub().Unregister(projectID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

const previewUnavailablePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Project Not Running</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>Project is not running</h1>
<p>Start the project from the dashboard to see its preview.</p>
</body>
</html>
`

func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/preview/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		r.notFound(w)
		return
	}
	ownerKey, slug := parts[0], parts[1]
	proj, err := r.project.GetBySlug(req.Context(), ownerKey, slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	doc, err := r.preview.Assemble(req.Context(), proj)
	if err != nil {
		switch {
		case errors.Is(err, preview.ErrNotRunning):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(previewUnavailablePage))
		case errors.Is(err, preview.ErrEntryMissing):
			writeError(w, http.StatusNotFound, "entry document not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		} else if strings.HasPrefix(req.URL.Path, "/logs/") && req.Method == http.MethodPost {
			actor = "runner"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// verifyRunnerToken ensures log pushes carry the configured shared secret.
func (r *Router) verifyRunnerToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.runnerToken
	if expected == "" {
		r.logger.Error("runner token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "runner authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Runner-Token"))
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("runner token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid runner token")
		return false
	}
	return true
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

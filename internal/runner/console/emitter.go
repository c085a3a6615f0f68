package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vehosts/vehosts/internal/domain"
)

const (
	defaultTimeout   = 5 * time.Second
	maxErrorBodySize = 4096
)

// ErrUnauthorized indicates the API rejected the runner token.
var ErrUnauthorized = errors.New("console emitter unauthorized")

// ErrInvalidArgument indicates the API rejected the record payload.
var ErrInvalidArgument = errors.New("console emitter invalid argument")

// ErrNotFound indicates the API could not locate the referenced project.
var ErrNotFound = errors.New("console emitter project not found")

// Emitter sends console log records to the API ingest endpoint. Emissions are
// synchronous so records for one run arrive in order.
type Emitter struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewEmitter creates an emitter using the provided API base URL and runner token.
func NewEmitter(baseURL, runnerToken string, client *http.Client) (*Emitter, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("console emitter base url required")
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	return &Emitter{
		baseURL: trimmed,
		token:   strings.TrimSpace(runnerToken),
		client:  client,
	}, nil
}

// Emit delivers one record to the API.
func (e *Emitter) Emit(ctx context.Context, projectID string, logType domain.LogType, message string) error {
	if e == nil {
		return errors.New("console emitter not initialised")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return errors.New("console emitter requires project_id")
	}
	if !logType.Valid() {
		return fmt.Errorf("console emitter unknown log type %q", logType)
	}
	body, err := json.Marshal(map[string]any{
		"log_type": string(logType),
		"message":  message,
	})
	if err != nil {
		return fmt.Errorf("marshal console record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/logs/"+projectID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build console request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("X-Runner-Token", e.token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send console record: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return e.errorForStatus(resp)
	}
	return nil
}

func (e *Emitter) errorForStatus(resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrorBodySize)
	buf, _ := io.ReadAll(limited)
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, summary)
	default:
		return fmt.Errorf("console record rejected: %s", summary)
	}
}

package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vehosts/vehosts/internal/domain"
)

func TestEmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/logs/proj-123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if token := r.Header.Get("X-Runner-Token"); token != "secret" {
			t.Fatalf("unexpected token header %s", token)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["log_type"] != "info" {
			t.Fatalf("unexpected log_type %v", payload["log_type"])
		}
		if payload["message"] != "starting" {
			t.Fatalf("unexpected message %v", payload["message"])
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	emitter, err := NewEmitter(srv.URL, "secret", srv.Client())
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	if err := emitter.Emit(context.Background(), "proj-123", domain.LogInfo, "starting"); err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
}

func TestEmitMapsStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusBadRequest, ErrInvalidArgument},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		emitter, err := NewEmitter(srv.URL, "", srv.Client())
		if err != nil {
			t.Fatalf("NewEmitter: %v", err)
		}
		err = emitter.Emit(context.Background(), "proj-123", domain.LogError, "boom")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		srv.Close()
	}
}

func TestEmitRejectsUnknownLogType(t *testing.T) {
	emitter, err := NewEmitter("http://localhost:0", "", nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	if err := emitter.Emit(context.Background(), "proj-123", domain.LogType("verbose"), "msg"); err == nil {
		t.Fatalf("expected error for unknown log type")
	}
}

package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInstallWritesManifest(t *testing.T) {
	dir := t.TempDir()
	inst := New("true", time.Second)

	result, err := inst.Install(context.Background(), dir, []byte("requests==2.31.0\n"))
	if err != nil {
		t.Fatalf("Install returned error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected OK result, got %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if string(data) != "requests==2.31.0\n" {
		t.Fatalf("unexpected manifest content %q", data)
	}
}

func TestInstallFailureDoesNotError(t *testing.T) {
	inst := New("false", time.Second)

	result, err := inst.Install(context.Background(), t.TempDir(), []byte("definitely-not-a-real-package\n"))
	if err != nil {
		t.Fatalf("install failure must be reported, not raised: %v", err)
	}
	if result.OK {
		t.Fatalf("expected OK=false for failing installer")
	}
	if result.Stderr == "" {
		t.Fatalf("expected captured error text")
	}
}

package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareCreatesUniqueDirs(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	second, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique sandbox dirs, got %q twice", first)
	}
	for _, dir := range []string{first, second} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %q: %v", dir, err)
		}
	}
}

func TestCleanupRemovesSandbox(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dir, err := m.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := m.Cleanup(dir); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected sandbox to be removed, stat err: %v", err)
	}
}

func TestCleanupRefusesOutsideRoot(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	outside := t.TempDir()

	if err := m.Cleanup(outside); err == nil {
		t.Fatalf("expected error cleaning path outside workspace root")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("outside dir should be untouched: %v", err)
	}
}

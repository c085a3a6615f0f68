package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const manifestName = "requirements.txt"

// Result summarizes one install attempt. A failed install never aborts the
// run; the user's script fails informatively if an import is missing.
type Result struct {
	OK     bool
	Stdout string
	Stderr string
}

// Installer resolves a project's declared packages into a user-local target
// before execution.
type Installer struct {
	pipBin  string
	timeout time.Duration
}

// New constructs an installer around the given pip binary.
func New(pipBin string, timeout time.Duration) Installer {
	if pipBin == "" {
		pipBin = "pip3"
	}
	return Installer{pipBin: pipBin, timeout: timeout}
}

// Install writes the manifest into the sandbox directory and invokes pip
// against it. The returned error covers only setup failures (manifest write);
// a non-zero pip exit is reported through Result.OK.
func (i Installer) Install(ctx context.Context, sandboxDir string, manifest []byte) (Result, error) {
	manifestPath := filepath.Join(sandboxDir, manifestName)
	if err := os.WriteFile(manifestPath, manifest, 0o644); err != nil {
		return Result{}, fmt.Errorf("write manifest: %w", err)
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, i.pipBin, "install", "-r", manifestPath, "--user", "--quiet")
	cmd.Dir = sandboxDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		OK:     err == nil,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil && result.Stderr == "" {
		result.Stderr = err.Error()
	}
	return result, nil
}

package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandRunner abstracts the external package-manager subprocesses the
// installer shells out to (npm, pip, venv creation), so tests can substitute
// a fake without touching the filesystem or network.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) error
}

// execRunner runs real subprocesses via os/exec.
type execRunner struct{}

// NewExecRunner returns the default CommandRunner, which shells out for real.
func NewExecRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s %v in %s: %w", name, args, dir, err)
	}
	return nil
}

// npmInstall runs `npm install` (or the bundled npm, when nodeBin names a
// bundled node binary with an npm executable beside it) for an agent/stack
// package directory, per spec.md §4.E's agent npmPackage strategy.
func npmInstall(ctx context.Context, runner CommandRunner, dir, npmPackage, nodeBin string) error {
	npmPath := resolveSiblingTool(nodeBin, "npm")
	if npmPath == "" {
		npmPath = "npm"
	}
	return runner.Run(ctx, dir, npmPath, "install", npmPackage, "--no-save")
}

// pipInstall creates a venv under <dir>/venv (using the bundled Python
// binary if known, else system python3) and installs pipPackage into it.
func pipInstall(ctx context.Context, runner CommandRunner, dir, pipPackage, pythonBin string) error {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	venvDir := filepath.Join(dir, "venv")
	if err := runner.Run(ctx, dir, pythonBin, "-m", "venv", venvDir); err != nil {
		return err
	}
	venvPip := filepath.Join(venvDir, "bin", "pip")
	return runner.Run(ctx, dir, venvPip, "install", pipPackage)
}

// resolveSiblingTool returns the path to another executable installed
// alongside bin (e.g. npm next to node), or "" when bin is empty or no
// such file exists next to it.
func resolveSiblingTool(bin, tool string) string {
	if bin == "" {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(bin), tool)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

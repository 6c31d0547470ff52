// Package history reads repository timestamps from git: when a catalog
// metadata file was first added, and when a cloned repository last saw a
// commit.
package history

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Runner executes a git subcommand in dir and returns its stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// GitRunner runs the git binary.
type GitRunner struct {
	binPath string
}

// NewGitRunner creates a GitRunner. If binPath is empty, "git" is used.
func NewGitRunner(binPath string) *GitRunner {
	if binPath == "" {
		binPath = "git"
	}
	return &GitRunner{binPath: binPath}
}

// Run implements Runner. A non-zero exit is returned as an error that carries
// git's stderr.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, g.binPath, args...)
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "git %s: %s", args[0], strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

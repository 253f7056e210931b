// Package infra implements infrastructure concerns (store, scheduler, sinks, process registry).
package infra

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	LookPath(name string) (string, error)
}

// RealCommandRunner executes real system commands
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// LookPath reports where name would be found on PATH
func (r *RealCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// firstAvailable returns the first candidate found on PATH.
func firstAvailable(runner CommandRunner, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if _, err := runner.LookPath(c); err == nil {
			return c, true
		}
	}
	return "", false
}

package dispatch

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Command is one subprocess invocation.
type Command struct {
	Args   []string // Program followed by its arguments.
	Dir    string
	Env    []string // KEY=VALUE pairs; the full environment of the child.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner starts commands and waits for them.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run starts cmd and waits for it to exit. A non-zero exit is returned as
// an *exec.ExitError.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("run: empty command")
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("run %s: %w", cmd.Args[0], err)
	}
	return nil
}

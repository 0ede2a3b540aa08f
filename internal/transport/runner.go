// Package transport spawns the external programs bridge delegates to:
// ssh for remote execution, rsync and ssh+tar for sync, scp for single
// transfers. Everything goes through a Runner so tests can record commands
// instead of running them.
package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// NotFoundStatus is reported when the program is not installed.
const NotFoundStatus = 127

// Command is one process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // appended to the current environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command for logs and previews.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes commands and reports their exit status.
//
// A process that starts and exits non-zero is not an error: the status is
// returned with a nil error. The error is reserved for failing to run the
// process at all, with NotFoundStatus when the binary is missing.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the local host with os/exec.
type ExecRunner struct {
	Logger *log.Logger // nil uses log.Default()
}

func (r ExecRunner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Run starts cmd and waits for it. Cancelling ctx kills the process.
func (r ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	r.logger().Debug("Running", "cmd", c.String())

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 1, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return NotFoundStatus, err
	}
	return 1, err
}

// LookPath reports where name is installed.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

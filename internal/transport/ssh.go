package transport

import (
	"context"
	"io"
)

// KeepaliveOptions make ssh notice a dead connection within about 15s
// instead of waiting for the TCP timeout.
var KeepaliveOptions = []string{"-o", "ServerAliveInterval=5", "-o", "ServerAliveCountMax=3"}

// ProbeOptions make a reachability check fail fast and never prompt.
var ProbeOptions = []string{"-o", "ConnectTimeout=5", "-o", "BatchMode=yes"}

// SSH runs commands on remote hosts through the ssh client.
type SSH struct {
	Runner Runner
	Binary string // empty means "ssh"
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunOptions tweak a single remote execution.
type RunOptions struct {
	// TTY requests a pseudo-terminal (ssh -t) for interactive programs.
	TTY bool
}

func (s *SSH) binary() string {
	if s.Binary != "" {
		return s.Binary
	}
	return "ssh"
}

// RunCommand builds the ssh invocation for command on host.
func (s *SSH) RunCommand(host, command string, opts RunOptions) Command {
	var args []string
	if opts.TTY {
		args = append(args, "-t")
	}
	args = append(args, KeepaliveOptions...)
	args = append(args, host, command)
	return Command{Name: s.binary(), Args: args, Stdin: s.Stdin, Stdout: s.Stdout, Stderr: s.Stderr}
}

// Run executes command on host with output streamed to the configured
// writers. Status 255 means the connection failed.
func (s *SSH) Run(ctx context.Context, host, command string, opts RunOptions) (int, error) {
	return s.Runner.Run(ctx, s.RunCommand(host, command, opts))
}

// Stream executes command on host with r as its standard input.
func (s *SSH) Stream(ctx context.Context, host, command string, r io.Reader) (int, error) {
	c := s.RunCommand(host, command, RunOptions{})
	c.Stdin = r
	return s.Runner.Run(ctx, c)
}

// ProbeCommand builds the reachability check for host.
func (s *SSH) ProbeCommand(host string) Command {
	args := append(append([]string(nil), ProbeOptions...), host, "exit 0")
	return Command{Name: s.binary(), Args: args}
}

// Probe reports whether host accepts a non-interactive login.
func (s *SSH) Probe(ctx context.Context, host string) bool {
	code, err := s.Runner.Run(ctx, s.ProbeCommand(host))
	return err == nil && code == 0
}

package transport

import (
	"context"
	"fmt"
	"io"
)

// SCP copies single files or directories with the scp client.
type SCP struct {
	Runner Runner
	Binary string // empty means "scp"
	Stdout io.Writer
	Stderr io.Writer
}

func (s *SCP) binary() string {
	if s.Binary != "" {
		return s.Binary
	}
	return "scp"
}

// UploadCommand builds `scp -r <local> <host>:<remote>`.
func (s *SCP) UploadCommand(local, host, remote string) Command {
	return Command{Name: s.binary(), Args: []string{"-r", local, fmt.Sprintf("%s:%s", host, remote)}, Stdout: s.Stdout, Stderr: s.Stderr}
}

// DownloadCommand builds `scp -r <host>:<remote> <local>`.
func (s *SCP) DownloadCommand(host, remote, local string) Command {
	return Command{Name: s.binary(), Args: []string{"-r", fmt.Sprintf("%s:%s", host, remote), local}, Stdout: s.Stdout, Stderr: s.Stderr}
}

// Upload copies local to remote on host.
func (s *SCP) Upload(ctx context.Context, local, host, remote string) (int, error) {
	return s.Runner.Run(ctx, s.UploadCommand(local, host, remote))
}

// Download copies remote on host to local.
func (s *SCP) Download(ctx context.Context, host, remote, local string) (int, error) {
	return s.Runner.Run(ctx, s.DownloadCommand(host, remote, local))
}

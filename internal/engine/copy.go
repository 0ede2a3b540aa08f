package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/shell"
	"github.com/bianoble/bridge/internal/transport"
)

// CopyEngine moves single files or directories between the project and a
// host with scp.
type CopyEngine struct {
	Host   config.Host
	SSH    *transport.SSH
	SCP    *transport.SCP
	Logger *log.Logger // nil uses log.Default()
}

func (e *CopyEngine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// Upload copies local into the host's project directory. dest is relative to
// the host path and defaults to the base name of local.
func (e *CopyEngine) Upload(ctx context.Context, local, dest string, dryRun bool) (*CopyResult, error) {
	h := e.Host
	if dest == "" {
		dest = filepath.Base(local)
	}
	remote := joinRemote(h.Path, dest)
	result := &CopyResult{Host: h.Hostname, Local: local, Remote: remote, DryRun: dryRun}

	if dryRun {
		e.logger().Info("Would upload", "from", local, "to", h.Hostname+":"+remote)
		return result, nil
	}

	dir := path.Dir(remote)
	code, err := e.SSH.Run(ctx, h.Hostname, shell.For(h.Shell).Mkdir(dir), transport.RunOptions{})
	if err != nil || code != 0 {
		return result, e.fail(ctx, code, fmt.Errorf("creating remote directory %s: %w", dir, errOrStatus(err, code)))
	}

	e.logger().Debug("Uploading", "from", local, "to", h.Hostname+":"+remote)
	code, err = e.SCP.Upload(ctx, local, h.Hostname, remote)
	if err != nil || code != 0 {
		return result, e.fail(ctx, code, errOrStatus(err, code))
	}
	return result, nil
}

// Download copies file from the host to dest, which defaults to the base
// name of file in the working directory.
func (e *CopyEngine) Download(ctx context.Context, file, dest string, dryRun bool) (*CopyResult, error) {
	h := e.Host
	remote := RemotePath(h.Path, file)
	if dest == "" {
		dest = path.Base(strings.ReplaceAll(file, `\`, "/"))
	}
	result := &CopyResult{Host: h.Hostname, Local: dest, Remote: remote, DryRun: dryRun}

	if dryRun {
		e.logger().Info("Would download", "from", h.Hostname+":"+remote, "to", dest)
		return result, nil
	}

	e.logger().Debug("Downloading", "from", h.Hostname+":"+remote, "to", dest)
	code, err := e.SCP.Download(ctx, h.Hostname, remote, dest)
	if err != nil || code != 0 {
		return result, e.fail(ctx, code, errOrStatus(err, code))
	}
	return result, nil
}

func (e *CopyEngine) fail(ctx context.Context, status int, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TransferError{Host: e.Host.Hostname, Method: "scp", Status: status, Err: err}
}

// RemotePath resolves file against the host path. Absolute, home-relative
// and drive-letter paths are returned unchanged.
func RemotePath(hostPath, file string) string {
	if strings.HasPrefix(file, "/") || strings.HasPrefix(file, "~") || strings.Contains(file, ":") {
		return file
	}
	return joinRemote(hostPath, file)
}

func joinRemote(base, rel string) string {
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, `\`, "/"), "./")
	return strings.TrimRight(base, "/") + "/" + rel
}

func errOrStatus(err error, code int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("exit status %d", code)
}

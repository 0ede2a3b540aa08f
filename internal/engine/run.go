package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/envsubst"
	"github.com/bianoble/bridge/internal/lock"
	"github.com/bianoble/bridge/internal/reconnect"
	"github.com/bianoble/bridge/internal/shell"
	"github.com/bianoble/bridge/internal/transport"
)

// RunEngine executes commands on one host: substitute, optionally sync,
// lock, wrap and adapt, then run under reconnect supervision.
type RunEngine struct {
	Host  config.Host
	Env   envsubst.Lookuper
	SSH   *transport.SSH
	Locks *lock.Manager
	Sync  *SyncEngine // required only when RunOptions.Sync is set

	// ProbeInterval overrides reconnect.DefaultInterval.
	ProbeInterval time.Duration
	Logger        *log.Logger // nil uses log.Default()
	Progress      io.Writer   // lock and reconnect progress dots
}

// RunOptions configures a remote execution.
type RunOptions struct {
	Command     string
	Sync        bool
	SyncOptions SyncOptions
	DryRun      bool
	// Interactive allocates a tty and skips locking and reconnect recovery.
	Interactive bool
}

func (e *RunEngine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// Prepared holds the fully substituted command lines for a run.
type Prepared struct {
	Command     string // user command after substitution
	RemoteLine  string // wrapped and adapted
	Recovery    string // recovery command after substitution, empty if none
	RecoverLine string
}

// Prepare substitutes the command, the wrapper and the recovery command and
// builds the remote command lines. It touches nothing outside the process,
// so a missing variable fails before any sync or remote action.
func (e *RunEngine) Prepare(command string) (*Prepared, error) {
	h := e.Host
	cmd, err := envsubst.Substitute(command, e.Env, h.StrictEnv)
	if err != nil {
		return nil, fmt.Errorf("substituting command: %w", err)
	}
	wrapper, err := envsubst.Substitute(h.Wrapper, e.Env, h.StrictEnv)
	if err != nil {
		return nil, fmt.Errorf("substituting wrapper for host '%s': %w", h.Name, err)
	}
	p := &Prepared{Command: cmd}

	adapter := shell.For(h.Shell)
	p.RemoteLine = adapter.Adapt(h.Path, shell.Wrap(wrapper, cmd))

	if h.ReconnectCommand != "" {
		rc, err := envsubst.Substitute(h.ReconnectCommand, e.Env, h.StrictEnv)
		if err != nil {
			return nil, fmt.Errorf("substituting reconnect_command for host '%s': %w", h.Name, err)
		}
		p.Recovery = rc
		p.RecoverLine = adapter.Adapt(h.Path, shell.Wrap(wrapper, rc))
	}
	return p, nil
}

// Run executes opts.Command on the host. A non-zero remote status is
// returned as a *RemoteCommandError alongside the result.
func (e *RunEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	h := e.Host
	logger := e.logger()

	prep, err := e.Prepare(opts.Command)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Host: h.Hostname, RemoteLine: prep.RemoteLine, DryRun: opts.DryRun}
	if !opts.Interactive {
		result.RecoverLine = prep.RecoverLine
	}

	if opts.Sync {
		if e.Sync == nil {
			return result, fmt.Errorf("sync requested but no sync engine configured")
		}
		syncOpts := opts.SyncOptions
		syncOpts.DryRun = opts.DryRun
		sr, err := e.Sync.Sync(ctx, h, syncOpts)
		result.Sync = sr
		if err != nil {
			return result, err
		}
	}

	if opts.DryRun {
		logger.Info("Would run", "host", h.Hostname, "cmd", prep.RemoteLine)
		return result, nil
	}

	if name, ok := h.Lock.LockName(); ok && !opts.Interactive {
		locks := e.Locks
		if locks == nil {
			locks = &lock.Manager{Logger: logger, Progress: e.Progress}
		}
		handle, err := locks.Acquire(ctx, h.Hostname, name, h.LockWait())
		if err != nil {
			return result, err
		}
		defer func() {
			if err := handle.Release(); err != nil {
				logger.Warn("Releasing lock", "err", err)
			}
		}()
		result.LockName = name
	}

	logger.Debug("Running", "host", h.Hostname, "cmd", prep.RemoteLine)

	sup := &reconnect.Supervisor{
		Host:     h.Hostname,
		Probe:    func(ctx context.Context) bool { return e.SSH.Probe(ctx, h.Hostname) },
		Interval: e.ProbeInterval,
		Logger:   logger,
		Progress: e.Progress,
	}
	exec := func(ctx context.Context, line string) (int, error) {
		return e.SSH.Run(ctx, h.Hostname, line, transport.RunOptions{TTY: opts.Interactive})
	}

	res, err := sup.Execute(ctx, exec, prep.RemoteLine, result.RecoverLine, h.ReconnectWait())
	if res != nil {
		result.ExitCode = res.ExitCode
		result.Session = res.Session
	}
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &RemoteCommandError{Host: h.Hostname, Status: result.ExitCode}
	}
	return result, nil
}

// Shell opens an interactive session in the host's project directory.
func (e *RunEngine) Shell(ctx context.Context, opts RunOptions) (*RunResult, error) {
	opts.Command = shell.For(e.Host.Shell).Program()
	opts.Interactive = true
	return e.Run(ctx, opts)
}

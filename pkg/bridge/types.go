package bridge

import (
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/engine"
	"github.com/bianoble/bridge/internal/reconnect"
	"github.com/bianoble/bridge/internal/transport"
)

// Re-export types so library consumers can use them without importing internal packages.

type (
	// Config is the merged project configuration.
	Config = config.Config

	// Host is one resolved host profile.
	Host = config.Host

	// LockSetting is a host's lock configuration.
	LockSetting = config.LockSetting

	// Plan describes what a sync transfers.
	Plan = engine.Plan

	// FileAction is one entry of a sync plan.
	FileAction = engine.FileAction

	// SyncResult holds the outcome of a sync operation.
	SyncResult = engine.SyncResult

	// RunResult holds the outcome of a remote execution.
	RunResult = engine.RunResult

	// CopyResult holds the outcome of an upload or download.
	CopyResult = engine.CopyResult

	// InfoResult describes the configured hosts.
	InfoResult = engine.InfoResult

	// Session records the reconnect state machine's path through one run.
	Session = reconnect.Session

	// TransferError reports a failed sync or copy.
	TransferError = engine.TransferError

	// RemoteCommandError carries a remote command's non-zero exit status.
	RemoteCommandError = engine.RemoteCommandError

	// Runner spawns external programs. Tests substitute a fake.
	Runner = transport.Runner
)

// ExitCode maps an error returned by a Client method to a process exit status.
func ExitCode(err error) int {
	return engine.ExitCode(err)
}

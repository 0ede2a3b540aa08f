package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bianoble/bridge/internal/envsubst"
	"github.com/bianoble/bridge/internal/lock"
	"github.com/bianoble/bridge/internal/reconnect"
)

// Exit statuses. A remote command's own status is passed through unchanged.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitTransfer     = 74  // sysexits EX_IOERR
	ExitLockTimeout  = 75  // sysexits EX_TEMPFAIL
	ExitSubstitution = 78  // sysexits EX_CONFIG
	ExitInterrupted  = 130 // 128 + SIGINT
	ExitConnection   = reconnect.ConnectionFailureStatus
)

// TransferError reports a failed sync or copy.
type TransferError struct {
	Host   string
	Method string
	Status int // exit status of the transfer program, 0 if it never ran
	Err    error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("%s to %s failed", e.Method, e.Host)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// RemoteCommandError carries a non-zero exit status of the remote command.
// The CLI exits with Status and prints nothing: the command's own output
// already explained the failure.
type RemoteCommandError struct {
	Host   string
	Status int
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("remote command on %s exited with status %d", e.Host, e.Status)
}

// ExitCode maps an error from any engine operation to the process exit
// status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var remoteErr *RemoteCommandError
	if errors.As(err, &remoteErr) {
		return remoteErr.Status
	}
	var substErr *envsubst.SubstitutionError
	if errors.As(err, &substErr) {
		return ExitSubstitution
	}
	var lockErr *lock.TimeoutError
	if errors.As(err, &lockErr) {
		return ExitLockTimeout
	}
	var reconnectErr *reconnect.TimeoutError
	if errors.As(err, &reconnectErr) {
		return ExitConnection
	}
	var connErr *reconnect.ConnectionError
	if errors.As(err, &connErr) {
		return ExitConnection
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return ExitTransfer
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFailure
}

// Silent reports whether the CLI should skip printing err.
func Silent(err error) bool {
	var remoteErr *RemoteCommandError
	return errors.As(err, &remoteErr)
}

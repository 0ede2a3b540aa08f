// Package reconnect supervises a remote command and recovers from the
// connection dropping underneath it, typically because the host rebooted.
//
// A remote exit status of 255 is read as "the transport failed". When a
// recovery command is configured the supervisor waits for the host to come
// back, then runs the recovery command in place of the original one.
package reconnect

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// ConnectionFailureStatus is the exit status ssh reports when the connection
// itself failed. A remote command exiting 255 on its own is indistinguishable.
const ConnectionFailureStatus = 255

// DefaultInterval between reachability probes.
const DefaultInterval = 5 * time.Second

// State of a supervised execution.
type State int

const (
	Connected State = iota
	AttemptingReconnect
	RunningRecovery
	Recovered
	Failed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case AttemptingReconnect:
		return "attempting-reconnect"
	case RunningRecovery:
		return "running-recovery"
	case Recovered:
		return "recovered"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Recovered || s == Failed
}

// ExecFunc runs a command on the remote host and returns its exit status.
// The error is reserved for failures to run the transport at all.
type ExecFunc func(ctx context.Context, command string) (int, error)

// ProbeFunc reports whether the host accepts connections again.
type ProbeFunc func(ctx context.Context) bool

// Session records one supervised execution.
type Session struct {
	State    State
	History  []State
	Recovery string
	Timeout  time.Duration
	Started  time.Time // when the connection loss was detected
	Elapsed  time.Duration
	Attempts int
}

func (s *Session) transition(to State) {
	s.State = to
	s.History = append(s.History, to)
}

// Result is the outcome of Execute.
type Result struct {
	ExitCode int
	Session  *Session
}

// ConnectionError is returned when the connection dropped and no recovery
// command is configured.
type ConnectionError struct {
	Host string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s lost (ssh exit %d); set reconnect_command to recover automatically", e.Host, ConnectionFailureStatus)
}

// ExitCode returns the status the CLI exits with.
func (e *ConnectionError) ExitCode() int { return ConnectionFailureStatus }

// TimeoutError is returned when the host did not come back in time.
type TimeoutError struct {
	Host     string
	Timeout  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s to reconnect (%d probes); raise reconnect_timeout if the host needs longer to boot", e.Timeout, e.Host, e.Attempts)
}

// ExitCode returns the status the CLI exits with.
func (e *TimeoutError) ExitCode() int { return ConnectionFailureStatus }

// Supervisor runs commands and drives the reconnect state machine.
type Supervisor struct {
	Host     string
	Probe    ProbeFunc
	Interval time.Duration // zero means DefaultInterval
	Logger   *log.Logger   // nil uses log.Default()
	Progress io.Writer     // receives one '.' per failed probe when set
}

func (s *Supervisor) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Supervisor) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

// Execute runs command. Any status other than ConnectionFailureStatus is
// returned unchanged. On 255 with an empty recovery command it returns a
// *ConnectionError at once; otherwise it probes the host every interval until
// it answers, runs recovery and returns that command's status, or gives up
// with a *TimeoutError once timeout has elapsed.
func (s *Supervisor) Execute(ctx context.Context, exec ExecFunc, command, recovery string, timeout time.Duration) (*Result, error) {
	sess := &Session{State: Connected, History: []State{Connected}, Recovery: recovery, Timeout: timeout}

	code, err := exec(ctx, command)
	if err != nil {
		return &Result{ExitCode: code, Session: sess}, err
	}
	if code != ConnectionFailureStatus {
		return &Result{ExitCode: code, Session: sess}, nil
	}
	if recovery == "" {
		return &Result{ExitCode: code, Session: sess}, &ConnectionError{Host: s.Host}
	}

	logger := s.logger()
	sess.transition(AttemptingReconnect)
	sess.Started = time.Now()
	deadline := sess.Started.Add(timeout)
	logger.Warn("Connection lost, waiting for host to come back", "host", s.Host, "timeout", timeout)

	for {
		now := time.Now()
		sess.Elapsed = now.Sub(sess.Started)
		if !now.Before(deadline) {
			s.endProgress(sess.Attempts)
			sess.transition(Failed)
			logger.Error("Host did not come back", "host", s.Host, "probes", sess.Attempts)
			return &Result{ExitCode: ConnectionFailureStatus, Session: sess},
				&TimeoutError{Host: s.Host, Timeout: timeout, Attempts: sess.Attempts}
		}

		wait := s.interval()
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.endProgress(sess.Attempts)
			return &Result{ExitCode: ConnectionFailureStatus, Session: sess}, ctx.Err()
		case <-timer.C:
		}

		sess.Attempts++
		if s.Probe != nil && s.Probe(ctx) {
			break
		}
		logger.Debug("Host still unreachable", "host", s.Host, "attempt", sess.Attempts)
		if s.Progress != nil {
			fmt.Fprint(s.Progress, ".")
		}
	}

	s.endProgress(sess.Attempts - 1)
	sess.Elapsed = time.Since(sess.Started)
	sess.transition(RunningRecovery)
	logger.Info("Reconnected, running recovery command", "host", s.Host, "after", sess.Elapsed.Round(time.Second), "command", recovery)

	code, err = exec(ctx, recovery)
	if err != nil {
		sess.transition(Failed)
		return &Result{ExitCode: code, Session: sess}, err
	}
	sess.transition(Recovered)
	return &Result{ExitCode: code, Session: sess}, nil
}

// endProgress terminates the dot line if any dots were printed.
func (s *Supervisor) endProgress(dots int) {
	if s.Progress != nil && dots > 0 {
		fmt.Fprintln(s.Progress)
	}
}

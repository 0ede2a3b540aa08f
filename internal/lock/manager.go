package lock

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// DefaultPollInterval is the fixed retry interval while a lock is contended.
const DefaultPollInterval = 2 * time.Second

// TimeoutError is returned when a lock could not be acquired in time.
type TimeoutError struct {
	Host    string
	Name    string
	Path    string
	Timeout time.Duration
	Holder  *HolderInfo // nil when the holder sidecar could not be read
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for lock '%s' on host %s", e.Timeout, e.Name, e.Host)
	if e.Holder != nil {
		msg += fmt.Sprintf(" (held by %s)", e.Holder)
	}
	return msg + "; raise lock_timeout or wait for the other run to finish"
}

// Manager acquires advisory locks. The zero value is usable.
type Manager struct {
	// Dir holds the lock files. Empty means DefaultDir().
	Dir string
	// PollInterval between attempts while contended. Zero means DefaultPollInterval.
	PollInterval time.Duration
	// Logger receives the waiting and acquired messages. Nil uses log.Default().
	Logger *log.Logger
	// Progress, when set, receives one '.' per failed attempt.
	Progress io.Writer
	// Command and InvocationID are recorded in the holder sidecar.
	Command      string
	InvocationID string
}

// Handle is a held lock. Release it exactly once; extra calls are no-ops.
type Handle struct {
	Host string
	Name string
	Path string

	fl   *flock.Flock
	once sync.Once
}

// Release unlocks the file and removes the holder sidecar. The lock file
// itself stays in place: deleting it would let a waiter lock an unlinked
// inode while a newcomer locks a fresh file.
func (h *Handle) Release() error {
	var err error
	h.once.Do(func() {
		_ = os.Remove(HolderPath(h.Path))
		if uerr := h.fl.Unlock(); uerr != nil {
			err = fmt.Errorf("releasing lock %s: %w", h.Path, uerr)
		}
	})
	return err
}

func (m *Manager) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}

func (m *Manager) interval() time.Duration {
	if m.PollInterval > 0 {
		return m.PollInterval
	}
	return DefaultPollInterval
}

// Acquire takes the exclusive lock for (host, name), polling while another
// process holds it. A zero timeout makes exactly one attempt. The final
// sleep is clipped so the call returns close to the deadline.
func (m *Manager) Acquire(ctx context.Context, host, name string, timeout time.Duration) (*Handle, error) {
	if name == "" {
		name = DefaultName
	}
	dir := m.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}

	path := Path(dir, host, name)
	fl := flock.New(path)
	logger := m.logger()

	start := time.Now()
	deadline := start.Add(timeout)
	waiting := false

	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if ok {
			if waiting {
				m.endProgress()
				logger.Info("Lock acquired", "name", name, "host", host, "waited", time.Since(start).Round(time.Millisecond))
			} else {
				logger.Debug("Lock acquired", "name", name, "host", host, "path", path)
			}
			m.recordHolder(path, host)
			return &Handle{Host: host, Name: name, Path: path, fl: fl}, nil
		}

		now := time.Now()
		if !now.Before(deadline) {
			if waiting {
				m.endProgress()
			}
			holder, _ := LoadHolder(path)
			return nil, &TimeoutError{Host: host, Name: name, Path: path, Timeout: timeout, Holder: holder}
		}

		if !waiting {
			waiting = true
			holder, _ := LoadHolder(path)
			logger.Info("Waiting for lock", "name", name, "host", host, "holder", holder.String(), "timeout", timeout)
		}
		if m.Progress != nil {
			fmt.Fprint(m.Progress, ".")
		}

		wait := m.interval()
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if waiting {
				m.endProgress()
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) endProgress() {
	if m.Progress != nil {
		fmt.Fprintln(m.Progress)
	}
}

func (m *Manager) recordHolder(path, host string) {
	id := m.InvocationID
	if id == "" {
		id = uuid.NewString()
	}
	info := &HolderInfo{
		PID:          os.Getpid(),
		InvocationID: id,
		Host:         host,
		Command:      m.Command,
		AcquiredAt:   time.Now().UTC(),
	}
	if err := SaveHolder(path, info); err != nil {
		m.logger().Debug("Could not record lock holder", "err", err)
	}
}

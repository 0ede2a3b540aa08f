package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/bridge/internal/sandbox"
)

// HolderInfo describes the process currently holding a lock. It is written
// next to the lock file after acquisition and only ever used for messages;
// ownership is decided by the OS lock alone.
type HolderInfo struct {
	PID          int       `yaml:"pid"`
	InvocationID string    `yaml:"invocation_id"`
	Host         string    `yaml:"host"`
	Command      string    `yaml:"command,omitempty"`
	AcquiredAt   time.Time `yaml:"acquired_at"`
}

func (h *HolderInfo) String() string {
	if h == nil {
		return "unknown holder"
	}
	s := fmt.Sprintf("pid %d", h.PID)
	if h.Command != "" {
		s += fmt.Sprintf(" running %q", h.Command)
	}
	if !h.AcquiredAt.IsZero() {
		s += " since " + h.AcquiredAt.Format(time.TimeOnly)
	}
	return s
}

// HolderPath returns the sidecar file for a lock file.
func HolderPath(lockPath string) string {
	return lockPath + ".holder"
}

// LoadHolder reads the holder sidecar for a lock file.
func LoadHolder(lockPath string) (*HolderInfo, error) {
	path := HolderPath(lockPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lock holder %s: %w", path, err)
	}

	var info HolderInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing lock holder %s: %w", path, err)
	}
	return &info, nil
}

// SaveHolder writes the holder sidecar atomically, next to the lock file.
func SaveHolder(lockPath string, info *HolderInfo) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling lock holder: %w", err)
	}

	path := HolderPath(lockPath)
	root := sandbox.Root(filepath.Dir(path))
	if err := root.WriteFile(filepath.Base(path), data, sandbox.WriteOptions{Perm: 0644}); err != nil {
		return fmt.Errorf("writing lock holder %s: %w", path, err)
	}
	return nil
}

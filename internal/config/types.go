package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to hosts that leave the field unset.
const (
	DefaultReconnectTimeout = 90
	DefaultLockTimeout      = 600
	DefaultLockName         = "default"
)

// DefaultExcludes is used when no layer sets sync.exclude.
var DefaultExcludes = []string{".git", "target", "node_modules", "__pycache__"}

// Config is the project profile: every host reachable from this project plus
// the shared sync settings.
type Config struct {
	DefaultHost string          `yaml:"default_host,omitempty"`
	Hosts       map[string]Host `yaml:"hosts"`
	Sync        SyncConfig      `yaml:"sync"`
}

// SyncConfig holds settings applied to every sync.
// A nil Exclude means "not set" so that layer merging can tell it apart
// from an explicit empty list.
type SyncConfig struct {
	Exclude []string `yaml:"exclude"`
}

// Host is one remote target. Timeouts are in seconds.
type Host struct {
	Name             string      `yaml:"-"`
	Hostname         string      `yaml:"hostname"`
	Path             string      `yaml:"path"`
	Shell            Shell       `yaml:"shell"`
	SyncMethod       SyncMethod  `yaml:"sync_method"`
	Wrapper          string      `yaml:"wrapper,omitempty"`
	StrictEnv        bool        `yaml:"strict_env"`
	EnvFiles         []string    `yaml:"env_files,omitempty"`
	ReconnectCommand string      `yaml:"reconnect_command,omitempty"`
	ReconnectTimeout int         `yaml:"reconnect_timeout"`
	Lock             LockSetting `yaml:"lock"`
	LockTimeout      int         `yaml:"lock_timeout"`
}

// ReconnectWait returns the reconnect timeout as a duration.
func (h Host) ReconnectWait() time.Duration {
	return time.Duration(h.ReconnectTimeout) * time.Second
}

// LockWait returns the lock timeout as a duration.
func (h Host) LockWait() time.Duration {
	return time.Duration(h.LockTimeout) * time.Second
}

// Shell is the remote command interpreter.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellPowerShell Shell = "powershell"
	ShellCmd        Shell = "cmd"
)

// Valid reports whether s is a supported shell.
func (s Shell) Valid() bool {
	switch s {
	case ShellBash, ShellPowerShell, ShellCmd:
		return true
	}
	return false
}

// Windows reports whether the shell runs on a Windows host.
func (s Shell) Windows() bool {
	return s == ShellPowerShell || s == ShellCmd
}

// SyncMethod selects the transfer strategy.
type SyncMethod string

const (
	// SyncTar streams a full archive every time.
	SyncTar SyncMethod = "tar"
	// SyncRsync transfers only differences and mirrors deletions.
	SyncRsync SyncMethod = "rsync"
)

// Valid reports whether m is a supported sync method.
func (m SyncMethod) Valid() bool {
	return m == SyncTar || m == SyncRsync
}

// LockKind says whether and how a host takes the advisory lock.
type LockKind int

const (
	LockOff LockKind = iota
	LockDefault
	LockNamed
)

// LockSetting is decoded from `lock = false | true | "name"`.
type LockSetting struct {
	Kind LockKind
	Name string
}

// LockName returns the effective lock name and whether locking is enabled.
func (l LockSetting) LockName() (string, bool) {
	switch l.Kind {
	case LockDefault:
		return DefaultLockName, true
	case LockNamed:
		if l.Name == "" {
			return DefaultLockName, true
		}
		return l.Name, true
	}
	return "", false
}

func (l LockSetting) String() string {
	name, ok := l.LockName()
	if !ok {
		return "off"
	}
	return name
}

func (l *LockSetting) set(v any) error {
	switch val := v.(type) {
	case bool:
		if val {
			*l = LockSetting{Kind: LockDefault}
		} else {
			*l = LockSetting{Kind: LockOff}
		}
	case string:
		if val == "" {
			*l = LockSetting{Kind: LockDefault}
		} else {
			*l = LockSetting{Kind: LockNamed, Name: val}
		}
	default:
		return fmt.Errorf("lock must be a boolean or a string, got %T", v)
	}
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (l *LockSetting) UnmarshalTOML(v any) error {
	return l.set(v)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LockSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: lock must be a boolean or a string", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		return l.set(b)
	}
	return l.set(node.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (l LockSetting) MarshalYAML() (any, error) {
	switch l.Kind {
	case LockDefault:
		return true, nil
	case LockNamed:
		return l.Name, nil
	}
	return false, nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

var (
	// ErrHostNotFound indicates the requested host is not configured.
	ErrHostNotFound = errors.New("host not found in configuration")
	// ErrNoDefaultHost indicates no host was named and default_host is unset.
	ErrNoDefaultHost = errors.New("no default host configured; use --host or set default_host")
)

// fileConfig mirrors the on-disk layout. Pointer fields distinguish "unset"
// from zero values so defaults and layer merging work.
type fileConfig struct {
	DefaultHost string              `toml:"default_host" yaml:"default_host"`
	Hosts       map[string]fileHost `toml:"hosts" yaml:"hosts"`
	Sync        fileSync            `toml:"sync" yaml:"sync"`
}

type fileSync struct {
	Exclude []string `toml:"exclude" yaml:"exclude"`
}

type fileHost struct {
	Hostname         string      `toml:"hostname" yaml:"hostname"`
	Path             string      `toml:"path" yaml:"path"`
	Shell            string      `toml:"shell" yaml:"shell"`
	SyncMethod       string      `toml:"sync_method" yaml:"sync_method"`
	Wrapper          string      `toml:"wrapper" yaml:"wrapper"`
	StrictEnv        *bool       `toml:"strict_env" yaml:"strict_env"`
	EnvFiles         []string    `toml:"env_files" yaml:"env_files"`
	ReconnectCommand string      `toml:"reconnect_command" yaml:"reconnect_command"`
	ReconnectTimeout *int        `toml:"reconnect_timeout" yaml:"reconnect_timeout"`
	Lock             LockSetting `toml:"lock" yaml:"lock"`
	LockTimeout      *int        `toml:"lock_timeout" yaml:"lock_timeout"`
}

func (fh fileHost) toHost(name string) Host {
	h := Host{
		Name:             name,
		Hostname:         fh.Hostname,
		Path:             fh.Path,
		Shell:            Shell(strings.ToLower(fh.Shell)),
		SyncMethod:       SyncMethod(strings.ToLower(fh.SyncMethod)),
		Wrapper:          fh.Wrapper,
		StrictEnv:        true,
		EnvFiles:         fh.EnvFiles,
		ReconnectCommand: fh.ReconnectCommand,
		ReconnectTimeout: DefaultReconnectTimeout,
		Lock:             fh.Lock,
		LockTimeout:      DefaultLockTimeout,
	}
	if h.Shell == "" {
		h.Shell = ShellBash
	}
	if h.SyncMethod == "" {
		h.SyncMethod = SyncTar
	}
	if fh.StrictEnv != nil {
		h.StrictEnv = *fh.StrictEnv
	}
	if fh.ReconnectTimeout != nil {
		h.ReconnectTimeout = *fh.ReconnectTimeout
	}
	if fh.LockTimeout != nil {
		h.LockTimeout = *fh.LockTimeout
	}
	return h
}

// Load reads and validates a bridge.toml or bridge.yaml file.
// Unset sync.exclude falls back to DefaultExcludes.
func Load(path string) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// Decode reads a config file without validating it. The format is chosen by
// extension: .yaml/.yml use YAML, anything else TOML.
func Decode(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parsing config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg := &Config{
		DefaultHost: fc.DefaultHost,
		Hosts:       make(map[string]Host, len(fc.Hosts)),
		Sync:        SyncConfig{Exclude: fc.Sync.Exclude},
	}
	for name, fh := range fc.Hosts {
		cfg.Hosts[name] = fh.toHost(name)
	}
	return cfg, nil
}

// ApplyDefaults fills settings no layer provided.
func (c *Config) ApplyDefaults() {
	if c.Sync.Exclude == nil {
		c.Sync.Exclude = append([]string(nil), DefaultExcludes...)
	}
	if c.Hosts == nil {
		c.Hosts = make(map[string]Host)
	}
}

// Resolve picks a host by explicit name or falls back to default_host.
func (c *Config) Resolve(name string) (Host, error) {
	hostName := strings.TrimSpace(name)
	if hostName == "" {
		hostName = c.DefaultHost
	}
	if hostName == "" {
		return Host{}, ErrNoDefaultHost
	}
	h, ok := c.Hosts[hostName]
	if !ok {
		return Host{}, fmt.Errorf("%w: '%s'", ErrHostNotFound, hostName)
	}
	h.Name = hostName
	return h, nil
}

// HostNames returns the configured host names in sorted order.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.DefaultHost != "" {
		if _, ok := cfg.Hosts[cfg.DefaultHost]; !ok {
			errs = append(errs, fmt.Sprintf("default_host '%s' is not defined under [hosts]", cfg.DefaultHost))
		}
	}

	for _, name := range cfg.HostNames() {
		errs = append(errs, ValidateHost(name, cfg.Hosts[name])...)
	}

	for _, pattern := range cfg.Sync.Exclude {
		if strings.TrimSpace(pattern) == "" {
			errs = append(errs, "sync.exclude: empty pattern")
		} else if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Sprintf("sync.exclude: invalid pattern '%s'", pattern))
		}
	}

	return errs
}

// ValidateHost checks one resolved host, e.g. after command-line overrides.
func ValidateHost(name string, h Host) []string {
	var errs []string
	prefix := fmt.Sprintf("host '%s'", name)

	if strings.TrimSpace(h.Hostname) == "" {
		errs = append(errs, fmt.Sprintf("%s: 'hostname' is required; an ssh alias or address", prefix))
	}
	if strings.TrimSpace(h.Path) == "" {
		errs = append(errs, fmt.Sprintf("%s: 'path' is required; the remote project directory", prefix))
	}
	if !h.Shell.Valid() {
		errs = append(errs, fmt.Sprintf("%s: invalid shell '%s'; must be one of: bash, powershell, cmd", prefix, h.Shell))
	}
	if !h.SyncMethod.Valid() {
		errs = append(errs, fmt.Sprintf("%s: invalid sync_method '%s'; must be one of: tar, rsync", prefix, h.SyncMethod))
	}
	if h.ReconnectTimeout < 0 {
		errs = append(errs, fmt.Sprintf("%s: reconnect_timeout must not be negative", prefix))
	}
	if h.LockTimeout < 0 {
		errs = append(errs, fmt.Sprintf("%s: lock_timeout must not be negative", prefix))
	}
	for i, f := range h.EnvFiles {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Sprintf("%s: env_files[%d] is empty", prefix, i))
		}
	}
	return errs
}

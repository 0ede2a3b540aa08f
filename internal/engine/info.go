package engine

import (
	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
)

// ConfigLayerStatus describes a config layer's load status for display.
type ConfigLayerStatus struct {
	Level  string `yaml:"level"` // "system", "user", "project"
	Path   string `yaml:"path"`
	Loaded bool   `yaml:"loaded"`
}

// HostInfo is one configured host as shown by `bridge hosts`.
type HostInfo struct {
	Name       string            `yaml:"name"`
	Hostname   string            `yaml:"hostname"`
	Path       string            `yaml:"path"`
	Shell      config.Shell      `yaml:"shell"`
	SyncMethod config.SyncMethod `yaml:"sync_method"`
	Lock       string            `yaml:"lock,omitempty"`
	Default    bool              `yaml:"default"`
}

// InfoResult holds what `bridge hosts` reports.
type InfoResult struct {
	Version     string              `yaml:"version"`
	ConfigPath  string              `yaml:"config"`
	DefaultHost string              `yaml:"default_host,omitempty"`
	Hosts       []HostInfo          `yaml:"hosts"`
	ConfigChain []ConfigLayerStatus `yaml:"layers,omitempty"`
	Excludes    []string            `yaml:"exclude"`
	CacheDir    string              `yaml:"cache_dir,omitempty"`
	CacheSize   int64               `yaml:"cache_size,omitempty"`
}

// Info gathers host information. Hosts are sorted by name.
func Info(version string, cfg *config.Config, c *cache.Cache, configPath string, layers []ConfigLayerStatus) (*InfoResult, error) {
	r := &InfoResult{
		Version:     version,
		ConfigPath:  configPath,
		DefaultHost: cfg.DefaultHost,
		ConfigChain: layers,
		Excludes:    cfg.Sync.Exclude,
	}

	if c != nil {
		r.CacheDir = c.Path()
		if size, err := c.Size(); err == nil {
			r.CacheSize = size
		}
	}

	for _, name := range cfg.HostNames() {
		h := cfg.Hosts[name]
		hi := HostInfo{
			Name:       name,
			Hostname:   h.Hostname,
			Path:       h.Path,
			Shell:      h.Shell,
			SyncMethod: h.SyncMethod,
			Default:    name == cfg.DefaultHost,
		}
		if lockName, ok := h.Lock.LockName(); ok {
			hi.Lock = lockName
		}
		r.Hosts = append(r.Hosts, hi)
	}

	return r, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const configDirName = "bridge"

// ProjectFileNames are checked in order in each directory while walking up.
var ProjectFileNames = []string{"bridge.toml", "bridge.yaml", "bridge.yml"}

// ErrConfigNotFound is returned when no project config exists in the
// working directory or any parent.
var ErrConfigNotFound = errors.New("no bridge.toml found in this directory or any parent; run 'bridge init' to create one")

// ConfigLevel represents the precedence level of a configuration file.
type ConfigLevel string

const (
	LevelSystem  ConfigLevel = "system"
	LevelUser    ConfigLevel = "user"
	LevelProject ConfigLevel = "project"
)

// ConfigLayerInfo describes a discovered config file and its load status.
type ConfigLayerInfo struct {
	Err    error // non-nil if the file exists but failed to load
	Path   string
	Level  ConfigLevel
	Loaded bool
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// ProjectPath is the project-level config path (required).
	ProjectPath string

	// SystemConfigPath overrides the default system config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	SystemConfigPath string

	// UserConfigPath overrides the default user config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	UserConfigPath string

	// NoInherit skips the system and user levels.
	NoInherit bool
}

// DiscoverPaths returns the ordered list of config file paths to check,
// from lowest precedence (system) to highest (project).
// Paths are deduplicated by resolved absolute path.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	var layers []ConfigLayerInfo
	seen := make(map[string]bool)

	addLayer := func(level ConfigLevel, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		layers = append(layers, ConfigLayerInfo{
			Path:  path,
			Level: level,
		})
	}

	if !opts.NoInherit {
		sysPath := opts.SystemConfigPath
		if sysPath == "" {
			sysPath = defaultSystemConfigPath()
		}
		addLayer(LevelSystem, sysPath)

		userPath := opts.UserConfigPath
		if userPath == "" {
			userPath = defaultUserConfigPath()
		}
		addLayer(LevelUser, userPath)
	}

	// Project-level config (always last, highest precedence).
	addLayer(LevelProject, opts.ProjectPath)

	return layers
}

// FindProject walks up from dir looking for a project config file.
func FindProject(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		for _, name := range ProjectFileNames {
			candidate := filepath.Join(abs, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrConfigNotFound
		}
		abs = parent
	}
}

// ProjectRoot returns the directory holding the project config file.
// Sync transfers this directory and env files resolve relative to it.
func ProjectRoot(configPath string) string {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return filepath.Dir(configPath)
	}
	return filepath.Dir(abs)
}

// defaultSystemConfigPath returns the platform-standard system config path.
func defaultSystemConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return filepath.Join(pd, configDirName, ProjectFileNames[0])
	default: // linux, darwin, etc.
		return filepath.Join("/etc", configDirName, ProjectFileNames[0])
	}
}

// defaultUserConfigPath returns the platform-standard user config path.
func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, ProjectFileNames[0])
}

// EnvNoInherit returns true if BRIDGE_NO_INHERIT is set to "1" or "true".
func EnvNoInherit() bool {
	return envBoolTrue("BRIDGE_NO_INHERIT")
}

// envBoolTrue returns true if the env var is set to "1" or "true" (case-insensitive).
func envBoolTrue(key string) bool {
	v := os.Getenv(key)
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true"
}

// LayeredResult is the merged configuration plus the per-layer load status.
type LayeredResult struct {
	Config *Config
	Root   string
	Layers []ConfigLayerInfo
}

// LoadLayered discovers system, user and project configs, merges them in
// precedence order and validates the result. A missing system or user file
// is skipped; a broken one is an error. The project file must exist.
func LoadLayered(opts DiscoverOptions) (*LayeredResult, error) {
	if opts.ProjectPath == "" {
		return nil, ErrConfigNotFound
	}

	layers := DiscoverPaths(opts)
	var configs []*Config

	for i := range layers {
		l := &layers[i]
		if l.Level != LevelProject {
			if _, err := os.Stat(l.Path); errors.Is(err, os.ErrNotExist) {
				continue
			}
		}
		cfg, err := Decode(l.Path)
		if err != nil {
			l.Err = err
			return &LayeredResult{Layers: layers}, fmt.Errorf("%s config: %w", l.Level, err)
		}
		l.Loaded = true
		configs = append(configs, cfg)
	}

	merged, err := MergeAll(configs)
	if err != nil {
		return &LayeredResult{Layers: layers}, err
	}
	merged.ApplyDefaults()

	if errs := Validate(merged); len(errs) > 0 {
		return &LayeredResult{Layers: layers}, &ValidationError{Errors: errs}
	}

	return &LayeredResult{
		Config: merged,
		Root:   ProjectRoot(opts.ProjectPath),
		Layers: layers,
	}, nil
}

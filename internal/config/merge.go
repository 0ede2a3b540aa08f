package config

import "fmt"

// Merge combines two configs where overlay takes precedence over base.
//   - default_host: overlay wins when set
//   - hosts: merge by name, an overlay entry replaces the base entry entirely
//   - sync.exclude: overlay wins when set (an explicit empty list clears it)
func Merge(base, overlay *Config) *Config {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	result := &Config{
		DefaultHost: base.DefaultHost,
		Hosts:       mergeHosts(base.Hosts, overlay.Hosts),
		Sync:        base.Sync,
	}
	if overlay.DefaultHost != "" {
		result.DefaultHost = overlay.DefaultHost
	}
	if overlay.Sync.Exclude != nil {
		result.Sync.Exclude = overlay.Sync.Exclude
	}
	return result
}

// MergeAll merges multiple configs in order (lowest precedence first).
func MergeAll(configs []*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configs to merge")
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		result = Merge(result, configs[i])
	}
	return result, nil
}

func mergeHosts(base, overlay map[string]Host) map[string]Host {
	result := make(map[string]Host, len(base)+len(overlay))
	for name, h := range base {
		result[name] = h
	}
	for name, h := range overlay {
		result[name] = h
	}
	return result
}

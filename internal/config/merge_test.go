package config

import "testing"

func TestMergeHostsByName(t *testing.T) {
	base := &Config{
		DefaultHost: "a",
		Hosts: map[string]Host{
			"a": {Hostname: "base-a"},
			"b": {Hostname: "base-b"},
		},
		Sync: SyncConfig{Exclude: []string{".git"}},
	}
	overlay := &Config{
		Hosts: map[string]Host{
			"b": {Hostname: "over-b"},
			"c": {Hostname: "over-c"},
		},
	}

	merged := Merge(base, overlay)

	if merged.DefaultHost != "a" {
		t.Errorf("DefaultHost = %q, base should survive an unset overlay", merged.DefaultHost)
	}
	if len(merged.Hosts) != 3 {
		t.Fatalf("hosts = %d, want 3", len(merged.Hosts))
	}
	if merged.Hosts["b"].Hostname != "over-b" {
		t.Errorf("b = %q, overlay should win", merged.Hosts["b"].Hostname)
	}
	if len(merged.Sync.Exclude) != 1 {
		t.Errorf("exclude = %v, base should survive nil overlay", merged.Sync.Exclude)
	}
}

func TestMergeOverlayWinsScalars(t *testing.T) {
	base := &Config{DefaultHost: "a", Sync: SyncConfig{Exclude: []string{".git"}}}
	overlay := &Config{DefaultHost: "b", Sync: SyncConfig{Exclude: []string{}}}

	merged := Merge(base, overlay)
	if merged.DefaultHost != "b" {
		t.Errorf("DefaultHost = %q, want b", merged.DefaultHost)
	}
	if merged.Sync.Exclude == nil || len(merged.Sync.Exclude) != 0 {
		t.Errorf("explicit empty overlay exclude should clear, got %v", merged.Sync.Exclude)
	}
}

func TestMergeNil(t *testing.T) {
	c := &Config{DefaultHost: "x"}
	if Merge(nil, c) != c || Merge(c, nil) != c {
		t.Error("nil side should return the other config")
	}
}

func TestMergeAll(t *testing.T) {
	if _, err := MergeAll(nil); err == nil {
		t.Error("expected error for empty list")
	}

	merged, err := MergeAll([]*Config{
		{DefaultHost: "one"},
		{DefaultHost: "two"},
		{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if merged.DefaultHost != "two" {
		t.Errorf("DefaultHost = %q, want two", merged.DefaultHost)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDiscoverPathsAllLevels(t *testing.T) {
	layers := DiscoverPaths(DiscoverOptions{
		ProjectPath:      "./bridge.toml",
		SystemConfigPath: "/etc/bridge/bridge.toml",
		UserConfigPath:   "/home/user/.config/bridge/bridge.toml",
	})

	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(layers))
	}

	if layers[0].Level != LevelSystem {
		t.Errorf("layers[0].Level = %q, want %q", layers[0].Level, LevelSystem)
	}
	if layers[1].Level != LevelUser {
		t.Errorf("layers[1].Level = %q, want %q", layers[1].Level, LevelUser)
	}
	if layers[2].Level != LevelProject {
		t.Errorf("layers[2].Level = %q, want %q", layers[2].Level, LevelProject)
	}
}

func TestDiscoverPathsDeduplication(t *testing.T) {
	samePath, err := filepath.Abs("./bridge.toml")
	if err != nil {
		t.Fatal(err)
	}

	layers := DiscoverPaths(DiscoverOptions{
		ProjectPath:      samePath,
		SystemConfigPath: samePath,
		UserConfigPath:   "/other/path/bridge.toml",
	})

	// System gets added first, then user, then project is deduplicated.
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers (deduped), got %d", len(layers))
	}
	if layers[0].Level != LevelSystem {
		t.Errorf("layers[0].Level = %q, want %q", layers[0].Level, LevelSystem)
	}
}

func TestDiscoverPathsNoInherit(t *testing.T) {
	layers := DiscoverPaths(DiscoverOptions{
		ProjectPath:      "./bridge.toml",
		SystemConfigPath: "/etc/bridge/bridge.toml",
		UserConfigPath:   "/home/user/.config/bridge/bridge.toml",
		NoInherit:        true,
	})
	if len(layers) != 1 || layers[0].Level != LevelProject {
		t.Fatalf("layers = %+v, want project only", layers)
	}
}

func TestDefaultSystemConfigPath(t *testing.T) {
	p := defaultSystemConfigPath()
	if p == "" {
		t.Fatal("system config path should not be empty")
	}

	switch runtime.GOOS {
	case "linux", "darwin":
		if p != "/etc/bridge/bridge.toml" {
			t.Errorf("system path = %q, want /etc/bridge/bridge.toml", p)
		}
	case "windows":
		if !filepath.IsAbs(p) {
			t.Errorf("system path should be absolute on Windows, got %q", p)
		}
	}
}

func TestEnvBoolTrue(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{" true ", true},
		{"0", false},
		{"false", false},
		{"", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := envBoolTrue("TEST_BOOL"); got != tt.want {
			t.Errorf("envBoolTrue(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestEnvNoInherit(t *testing.T) {
	t.Setenv("BRIDGE_NO_INHERIT", "1")
	if !EnvNoInherit() {
		t.Error("EnvNoInherit() = false with BRIDGE_NO_INHERIT=1")
	}
	t.Setenv("BRIDGE_NO_INHERIT", "")
	if EnvNoInherit() {
		t.Error("EnvNoInherit() = true with BRIDGE_NO_INHERIT unset")
	}
}

func TestFindProjectWalksUp(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "bridge.toml")
	if err := os.WriteFile(cfgPath, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProject(nested)
	if err != nil {
		t.Fatalf("FindProject: %v", err)
	}
	want, _ := filepath.EvalSymlinks(cfgPath)
	if gotReal, _ := filepath.EvalSymlinks(got); gotReal != want {
		t.Errorf("FindProject = %q, want %q", got, cfgPath)
	}
	if ProjectRoot(got) != filepath.Dir(got) {
		t.Errorf("ProjectRoot = %q", ProjectRoot(got))
	}
}

func TestFindProjectPrefersToml(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"bridge.yaml", "bridge.toml"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := FindProject(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "bridge.toml" {
		t.Errorf("FindProject = %q, want bridge.toml", got)
	}
}

func TestFindProjectNotFound(t *testing.T) {
	// The temp dir has no config and neither, in practice, do its parents.
	dir := t.TempDir()
	if _, err := os.Stat("/bridge.toml"); err == nil {
		t.Skip("a bridge.toml exists at the filesystem root")
	}
	_, err := FindProject(dir)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadLayeredMergesUserAndProject(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.toml")
	projectPath := filepath.Join(dir, "bridge.toml")

	writeConfig(t, userPath, `
[hosts.shared]
hostname = "shared.example.com"
path = "/srv/shared"

[hosts.dev]
hostname = "old.example.com"
path = "/old"
`)
	writeConfig(t, projectPath, `
default_host = "dev"

[hosts.dev]
hostname = "dev.example.com"
path = "/home/me/app"
`)

	res, err := LoadLayered(DiscoverOptions{
		ProjectPath:      projectPath,
		SystemConfigPath: filepath.Join(dir, "missing.toml"),
		UserConfigPath:   userPath,
	})
	if err != nil {
		t.Fatalf("LoadLayered: %v", err)
	}
	if len(res.Config.Hosts) != 2 {
		t.Errorf("hosts = %d, want 2", len(res.Config.Hosts))
	}
	if res.Config.Hosts["dev"].Hostname != "dev.example.com" {
		t.Errorf("dev hostname = %q, project layer should win", res.Config.Hosts["dev"].Hostname)
	}
	if res.Root != ProjectRoot(projectPath) {
		t.Errorf("Root = %q", res.Root)
	}

	var loaded int
	for _, l := range res.Layers {
		if l.Loaded {
			loaded++
		}
	}
	if loaded != 2 {
		t.Errorf("loaded layers = %d, want 2", loaded)
	}
}

func TestLoadLayeredBrokenUserLayer(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.toml")
	projectPath := filepath.Join(dir, "bridge.toml")
	writeConfig(t, userPath, "not = [valid")
	writeConfig(t, projectPath, minimalConfig)

	res, err := LoadLayered(DiscoverOptions{
		ProjectPath:      projectPath,
		SystemConfigPath: filepath.Join(dir, "missing.toml"),
		UserConfigPath:   userPath,
	})
	if err == nil {
		t.Fatal("expected error for broken user config")
	}
	if res == nil || res.Layers[1].Err == nil {
		t.Errorf("user layer should carry the error: %+v", res)
	}
}

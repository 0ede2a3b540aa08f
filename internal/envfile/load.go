// Package envfile reads dotenv files from a project directory.
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bianoble/bridge/internal/envsubst"
)

// DefaultFile is loaded first when present. Missing is not an error.
const DefaultFile = ".env"

// Load reads the base .env file and each additional file from projectRoot.
// The returned layers are ordered highest precedence first: later entries in
// files shadow earlier ones, and all of them shadow the base file.
func Load(fsys afero.Fs, projectRoot string, files []string) ([]envsubst.Layer, error) {
	var layers []envsubst.Layer

	basePath := filepath.Join(projectRoot, DefaultFile)
	exists, err := afero.Exists(fsys, basePath)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", basePath, err)
	}
	if exists {
		vars, err := ParseFile(fsys, basePath)
		if err != nil {
			return nil, err
		}
		layers = append(layers, envsubst.Layer{Name: DefaultFile, Vars: vars})
	}

	for _, name := range files {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectRoot, name)
		}
		ok, err := afero.Exists(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", path, err)
		}
		if !ok {
			return nil, fmt.Errorf("environment file not found: %s; remove it from env_files or create the file: %w", path, os.ErrNotExist)
		}
		vars, err := ParseFile(fsys, path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, envsubst.Layer{Name: name, Vars: vars})
	}

	// Highest precedence first.
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}
	return layers, nil
}

// ParseFile parses one dotenv file.
func ParseFile(fsys afero.Fs, path string) (map[string]string, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	vars, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vars, nil
}

// Parse parses dotenv content.
//
// Supported: KEY=value, KEY="double", KEY='single', an optional "export "
// prefix, # comments and blank lines. Lines without '=' are skipped.
func Parse(data []byte) (map[string]string, error) {
	vars := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !envsubst.ValidName(key) {
			return nil, fmt.Errorf("line %d: invalid environment variable name '%s'", lineNum, key)
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vars, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Environment builds the substitution context for one invocation: the
// process environment above the project's env files.
func Environment(fsys afero.Fs, projectRoot string, files []string) (*envsubst.Environment, error) {
	layers, err := Load(fsys, projectRoot, files)
	if err != nil {
		return nil, err
	}
	return envsubst.NewEnvironment(append([]envsubst.Layer{envsubst.ProcessLayer()}, layers...)...), nil
}

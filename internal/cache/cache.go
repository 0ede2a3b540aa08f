// Package cache remembers what the last successful sync sent to each remote
// directory, so the next sync can report which files are new, modified or
// gone without asking the remote host.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/bridge/internal/sandbox"
)

const manifestDir = "manifests"

// Manifest is the mirror of one remote directory as of the last sync.
type Manifest struct {
	Host     string            `yaml:"host"`
	Dest     string            `yaml:"dest"`
	Method   string            `yaml:"method"`
	SyncedAt time.Time         `yaml:"synced_at"`
	Files    map[string]string `yaml:"files"` // slash path -> sha256
}

// Cache stores manifests under a directory, one file per host:dest pair.
// Nothing is written until the first Save, so reading a cache (as a dry run
// does) never touches the disk.
type Cache struct {
	dir  string
	root sandbox.Root
}

// New returns a Cache rooted at dir. The directory may not exist yet, but
// an existing non-directory at that path is an error.
func New(dir string) (*Cache, error) {
	if st, err := os.Stat(dir); err == nil && !st.IsDir() {
		return nil, fmt.Errorf("cache directory %s is not a directory", dir)
	}
	return &Cache{dir: dir, root: sandbox.Root(dir)}, nil
}

// DefaultDir returns the default cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/bridge.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "bridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return filepath.Join(os.TempDir(), "bridge-cache")
		}
		return filepath.Join("/tmp", "bridge-cache")
	}
	return filepath.Join(home, ".cache", "bridge")
}

// Load returns the manifest for host:dest. A missing manifest returns
// nil, false. A corrupt one is treated as missing and left for the next
// Save to replace.
func (c *Cache) Load(host, dest string) (*Manifest, bool, error) {
	path := filepath.Join(c.dir, c.relPath(host, dest))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading manifest for %s:%s: %w", host, dest, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil || m.Host != host || m.Dest != dest {
		return nil, false, nil
	}
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	return &m, true, nil
}

// Save replaces the manifest for m.Host:m.Dest atomically.
func (c *Cache) Save(m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := c.root.WriteFile(c.relPath(m.Host, m.Dest), data, sandbox.WriteOptions{Perm: 0644}); err != nil {
		return fmt.Errorf("saving manifest for %s:%s: %w", m.Host, m.Dest, err)
	}
	return nil
}

// Remove forgets the manifest for host:dest and prunes its shard
// directory once empty.
func (c *Cache) Remove(host, dest string) error {
	return c.root.Remove(c.relPath(host, dest))
}

// Size returns the total size of the cache in bytes, zero before the first
// Save.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == c.dir && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// Path returns the cache directory path.
func (c *Cache) Path() string {
	return c.dir
}

func (c *Cache) relPath(host, dest string) string {
	key := ComputeHash([]byte(host + "\x00" + dest))
	return filepath.Join(manifestDir, key[:2], key+".yaml")
}

// ComputeHash computes the SHA256 hash of content and returns the hex string.
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// HashReader computes the SHA256 hash of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

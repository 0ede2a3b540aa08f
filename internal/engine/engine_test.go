package engine

import (
	"archive/tar"
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/transport"
	"github.com/bianoble/bridge/internal/transport/transporttest"
)

const projectRoot = "/proj"

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testHost(method config.SyncMethod) config.Host {
	return config.Host{
		Name:             "dev",
		Hostname:         "me@box",
		Path:             "/srv/app",
		Shell:            config.ShellBash,
		SyncMethod:       method,
		StrictEnv:        true,
		ReconnectTimeout: 1,
	}
}

func writeTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(projectRoot, filepath.FromSlash(rel))
		require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte(content), 0644))
	}
}

// newSyncEngine returns an engine over an in-memory project with a real
// manifest cache in a temp dir.
func newSyncEngine(t *testing.T, fake *transporttest.Fake, files map[string]string) (*SyncEngine, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, files)

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	return &SyncEngine{
		Fs:          fsys,
		ProjectRoot: projectRoot,
		Excludes:    []string{".git", "node_modules"},
		SSH:         &transport.SSH{Runner: fake},
		Rsync:       &transport.Rsync{Runner: fake},
		Cache:       c,
		Logger:      quietLogger(),
	}, fsys
}

// untar lists the entries of a gzip tar stream, mapping names to content.
// Symlinks map to "-> target".
func untar(t *testing.T, data []byte) map[string]string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	out := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeSymlink {
			out[hdr.Name] = "-> " + hdr.Linkname
			continue
		}
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(body)
	}
	return out
}

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/transport/transporttest"
)

var sampleTree = map[string]string{
	"a.txt":                   "a",
	"c.txt":                   "c",
	"src/b.go":                "b2",
	".git/HEAD":               "ref",
	".DS_Store":               "junk",
	"node_modules/x/index.js": "x",
}

func seedManifest(t *testing.T, e *SyncEngine, host config.Host) {
	t.Helper()
	require.NoError(t, e.Cache.Save(&cache.Manifest{
		Host: host.Hostname,
		Dest: host.Path,
		Files: map[string]string{
			"c.txt":     cache.ComputeHash([]byte("c")),
			"src/b.go":  cache.ComputeHash([]byte("b1")),
			"gone.txt":  cache.ComputeHash([]byte("g")),
			".git/HEAD": cache.ComputeHash([]byte("old")),
		},
	}))
}

func TestPlanWithoutBaselineMarksEverythingNew(t *testing.T) {
	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, sampleTree)

	plan, err := e.Plan(testHost(config.SyncTar), SyncOptions{})
	require.NoError(t, err)

	assert.False(t, plan.Baseline)
	assert.Equal(t, []string{"a.txt", "c.txt", "src/b.go"}, plan.New)
	assert.Empty(t, plan.Modified)
	assert.Empty(t, plan.Removed)
	assert.Equal(t, int64(4), plan.Bytes)

	var paths []string
	for _, en := range plan.Entries {
		paths = append(paths, en.Path)
	}
	assert.ElementsMatch(t, []string{"a.txt", "c.txt", "src", "src/b.go"}, paths)
	assert.Empty(t, fake.Calls(), "planning must not spawn processes")
}

func TestPlanDiffRsync(t *testing.T) {
	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, sampleTree)
	host := testHost(config.SyncRsync)
	seedManifest(t, e, host)

	plan, err := e.Plan(host, SyncOptions{})
	require.NoError(t, err)

	assert.True(t, plan.Baseline)
	assert.Equal(t, []string{"a.txt"}, plan.New)
	assert.Equal(t, []string{"src/b.go"}, plan.Modified)
	assert.Equal(t, []string{"c.txt"}, plan.Unchanged)
	assert.Equal(t, []string{"gone.txt"}, plan.Removed)
	assert.Equal(t, []string{".git/HEAD"}, plan.Preserved, "excluded files survive without delete-excluded")

	plan, err = e.Plan(host, SyncOptions{DeleteExcluded: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".git/HEAD", "gone.txt"}, plan.Removed)
	assert.Empty(t, plan.Preserved)
}

func TestPlanDiffTarNeverRemoves(t *testing.T) {
	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, sampleTree)
	host := testHost(config.SyncTar)
	seedManifest(t, e, host)

	plan, err := e.Plan(host, SyncOptions{DeleteExcluded: true})
	require.NoError(t, err)

	assert.Empty(t, plan.Removed)
	assert.Equal(t, []string{".git/HEAD", "gone.txt"}, plan.Preserved)
}

func TestPlanAutoExcludeCanBeDisabled(t *testing.T) {
	e, _ := newSyncEngine(t, &transporttest.Fake{}, sampleTree)

	plan, err := e.Plan(testHost(config.SyncTar), SyncOptions{NoAutoExclude: true})
	require.NoError(t, err)
	assert.Contains(t, plan.New, ".DS_Store")
	assert.NotContains(t, plan.New, "node_modules/x/index.js")
}

func TestPlanActionsSorted(t *testing.T) {
	e, _ := newSyncEngine(t, &transporttest.Fake{}, sampleTree)
	host := testHost(config.SyncRsync)
	seedManifest(t, e, host)

	plan, err := e.Plan(host, SyncOptions{})
	require.NoError(t, err)

	actions := plan.Actions()
	require.Len(t, actions, 5)
	assert.Equal(t, FileAction{Path: ".git/HEAD", Action: "preserved"}, actions[0])
	assert.Equal(t, FileAction{Path: "src/b.go", Action: "modified"}, actions[4])
}

func TestSyncTarStreamsArchive(t *testing.T) {
	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, sampleTree)
	host := testHost(config.SyncTar)

	result, err := e.Sync(context.Background(), host, SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.DryRun)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, `mkdir -p "/srv/app"`, calls[0].Last())
	assert.Equal(t, `cd "/srv/app" && tar -xzf -`, calls[1].Last())
	assert.Contains(t, calls[1].Args, "me@box")

	files := untar(t, calls[1].Stdin)
	assert.Equal(t, "a", files["a.txt"])
	assert.Equal(t, "b2", files["src/b.go"])
	assert.Contains(t, files, "src/")
	assert.NotContains(t, files, ".git/HEAD")
	assert.NotContains(t, files, ".DS_Store")

	m, found, err := e.Cache.Load(host.Hostname, host.Path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, m.Files, 3)
}

func TestSyncTarCarriesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}
	dir := t.TempDir()
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("data"), 0644))
	require.NoError(t, os.Symlink("real.txt", link))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.Symlink("../real.txt", filepath.Join(dir, ".git", "HEAD")))

	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, nil)
	e.Fs = afero.NewOsFs()
	e.ProjectRoot = dir
	host := testHost(config.SyncTar)

	plan, err := e.Plan(host, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"link.txt", "real.txt"}, plan.New)
	assert.Equal(t, int64(4), plan.Bytes, "links add no content bytes")

	_, err = e.Sync(context.Background(), host, SyncOptions{})
	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 2)
	files := untar(t, calls[1].Stdin)
	assert.Equal(t, map[string]string{"link.txt": "-> real.txt", "real.txt": "data"}, files)

	require.NoError(t, os.Remove(link))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("more"), 0644))
	require.NoError(t, os.Symlink("other.txt", link))

	plan, err = e.Plan(host, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"link.txt"}, plan.Modified, "retargeted link is modified")
	assert.Equal(t, []string{"other.txt"}, plan.New)
	assert.Equal(t, []string{"real.txt"}, plan.Unchanged)
}

func TestSyncTarKeepsPreservedFilesInManifest(t *testing.T) {
	e, _ := newSyncEngine(t, &transporttest.Fake{}, sampleTree)
	host := testHost(config.SyncTar)
	seedManifest(t, e, host)

	_, err := e.Sync(context.Background(), host, SyncOptions{})
	require.NoError(t, err)

	m, _, err := e.Cache.Load(host.Hostname, host.Path)
	require.NoError(t, err)
	assert.Contains(t, m.Files, "gone.txt")
	assert.Equal(t, cache.ComputeHash([]byte("b2")), m.Files["src/b.go"])
}

func TestSyncRsyncArguments(t *testing.T) {
	fake := &transporttest.Fake{}
	e, _ := newSyncEngine(t, fake, sampleTree)
	host := testHost(config.SyncRsync)

	_, err := e.Sync(context.Background(), host, SyncOptions{DeleteExcluded: true})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rsync", calls[0].Name)
	assert.Equal(t, []string{
		"-az", "--delete", "--delete-excluded",
		"--exclude=.git", "--exclude=node_modules", "--exclude=.DS_Store", "--exclude=._*",
		"/proj/", "me@box:/srv/app",
	}, calls[0].Args)
}

func TestSyncRsyncMissingIsTransferError(t *testing.T) {
	fake := &transporttest.Fake{Missing: map[string]bool{"rsync": true}}
	e, _ := newSyncEngine(t, fake, sampleTree)
	host := testHost(config.SyncRsync)

	_, err := e.Sync(context.Background(), host, SyncOptions{})
	require.Error(t, err)
	assert.Equal(t, ExitTransfer, ExitCode(err))
	assert.Contains(t, err.Error(), "rsync not found")
	assert.Empty(t, fake.Calls())

	_, found, err := e.Cache.Load(host.Hostname, host.Path)
	require.NoError(t, err)
	assert.False(t, found, "failed sync must not record a manifest")
}

func TestSyncRemoteExtractFailure(t *testing.T) {
	fake := &transporttest.Fake{Handle: func(c transporttest.Call) (int, error) {
		if strings.Contains(c.Last(), "tar -xzf") {
			return 2, nil
		}
		return 0, nil
	}}
	e, _ := newSyncEngine(t, fake, sampleTree)

	_, err := e.Sync(context.Background(), testHost(config.SyncTar), SyncOptions{})
	var tErr *TransferError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, 2, tErr.Status)
	assert.Equal(t, "tar", tErr.Method)
	assert.Equal(t, ExitTransfer, ExitCode(err))
}

func TestSyncDryRunSpawnsNothing(t *testing.T) {
	for _, method := range []config.SyncMethod{config.SyncTar, config.SyncRsync} {
		t.Run(string(method), func(t *testing.T) {
			fake := &transporttest.Fake{}
			e, _ := newSyncEngine(t, fake, sampleTree)
			host := testHost(method)

			result, err := e.Sync(context.Background(), host, SyncOptions{DryRun: true})
			require.NoError(t, err)
			assert.True(t, result.DryRun)
			assert.Len(t, result.Plan.New, 3)
			assert.Empty(t, fake.Calls())

			_, found, err := e.Cache.Load(host.Hostname, host.Path)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSyncDeleteExcludedWarnsForTar(t *testing.T) {
	e, _ := newSyncEngine(t, &transporttest.Fake{}, sampleTree)

	result, err := e.Sync(context.Background(), testHost(config.SyncTar), SyncOptions{DryRun: true, DeleteExcluded: true})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "--delete-excluded")
}

func TestSyncUnknownMethod(t *testing.T) {
	e, _ := newSyncEngine(t, &transporttest.Fake{}, sampleTree)
	host := testHost(config.SyncMethod("ftp"))

	_, err := e.Sync(context.Background(), host, SyncOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sync method 'ftp'")
	assert.Contains(t, err.Error(), "[rsync tar]")
}

func TestRsyncOptionsForWindowsHost(t *testing.T) {
	host := testHost(config.SyncRsync)
	host.Shell = config.ShellPowerShell
	host.Path = `C:\work\app`

	opts := RsyncOptionsFor(host, &Plan{Source: "/proj"}, true)
	assert.True(t, opts.NoPerms)
	assert.True(t, opts.Verbose)
	assert.Equal(t, `C:\work\app`, opts.Dest)
}

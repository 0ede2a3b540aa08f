package transport_test

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/bridge/internal/transport"
	"github.com/bianoble/bridge/internal/transport/transporttest"
)

func TestSSHRunArgs(t *testing.T) {
	fake := &transporttest.Fake{}
	s := &transport.SSH{Runner: fake}

	_, err := s.Run(context.Background(), "dev", `cd "/p" && ls`, transport.RunOptions{TTY: true})
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ssh", calls[0].Name)
	assert.Equal(t, []string{"-t", "-o", "ServerAliveInterval=5", "-o", "ServerAliveCountMax=3", "dev", `cd "/p" && ls`}, calls[0].Args)
}

func TestSSHStreamPassesStdin(t *testing.T) {
	fake := &transporttest.Fake{}
	s := &transport.SSH{Runner: fake}

	_, err := s.Stream(context.Background(), "dev", "tar -xzf -", strings.NewReader("payload"))
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "payload", string(calls[0].Stdin))
	assert.NotContains(t, calls[0].Args, "-t")
}

func TestSSHProbe(t *testing.T) {
	fake := &transporttest.Fake{Handle: func(c transporttest.Call) (int, error) {
		if c.IsProbe() {
			return 255, nil
		}
		return 0, nil
	}}
	s := &transport.SSH{Runner: fake}

	assert.False(t, s.Probe(context.Background(), "dev"))
	assert.Equal(t, []string{"-o", "ConnectTimeout=5", "-o", "BatchMode=yes", "dev", "exit 0"}, fake.Calls()[0].Args)
}

func TestRsyncArgs(t *testing.T) {
	args := transport.RsyncArgs(transport.RsyncOptions{
		Source:         "/proj",
		Host:           "win",
		Dest:           `C:\work\app`,
		Excludes:       []string{".git", "*.log"},
		DeleteExcluded: true,
		NoPerms:        true,
		Verbose:        true,
	})
	assert.Equal(t, []string{
		"-az", "--delete", "--delete-excluded", "--no-perms", "-v",
		"--exclude=.git", "--exclude=*.log",
		"/proj/", "win:/cygdrive/c/work/app",
	}, args)
}

func TestRsyncArgsMinimal(t *testing.T) {
	args := transport.RsyncArgs(transport.RsyncOptions{Source: "/proj/", Host: "dev", Dest: "/srv/app"})
	assert.Equal(t, []string{"-az", "--delete", "/proj/", "dev:/srv/app"}, args)
}

func TestRsyncAvailable(t *testing.T) {
	r := &transport.Rsync{Runner: &transporttest.Fake{Missing: map[string]bool{"rsync": true}}}
	err := r.Available()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsync")

	r = &transport.Rsync{Runner: &transporttest.Fake{}}
	assert.NoError(t, r.Available())
}

func TestToCygwinPath(t *testing.T) {
	tests := map[string]string{
		`C:/foo/bar`: "/cygdrive/c/foo/bar",
		`D:\x\y`:     "/cygdrive/d/x/y",
		`/home/u`:    "/home/u",
		`~/proj`:     "~/proj",
		`1:/x`:       "1:/x",
		``:           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, transport.ToCygwinPath(in), "input %q", in)
	}
}

func TestSCPCommands(t *testing.T) {
	s := &transport.SCP{}
	assert.Equal(t, "scp -r ./a.txt dev:/srv/app/a.txt", s.UploadCommand("./a.txt", "dev", "/srv/app/a.txt").String())
	assert.Equal(t, "scp -r dev:/srv/app/out.log ./out.log", s.DownloadCommand("dev", "/srv/app/out.log", "./out.log").String())
}

func TestExecRunnerStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := transport.ExecRunner{}
	var out bytes.Buffer

	code, err := r.Run(context.Background(), transport.Command{Name: "sh", Args: []string{"-c", "echo hi; exit 3"}, Stdout: &out})
	require.NoError(t, err, "non-zero exit is not an error")
	assert.Equal(t, 3, code)
	assert.Equal(t, "hi\n", out.String())

	code, err = r.Run(context.Background(), transport.Command{Name: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, err)
	assert.Equal(t, transport.NotFoundStatus, code)
}

func TestExecRunnerCancelled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sleep")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := transport.ExecRunner{}.Run(ctx, transport.Command{Name: "sleep", Args: []string{"5"}})
	assert.ErrorIs(t, err, context.Canceled)
}

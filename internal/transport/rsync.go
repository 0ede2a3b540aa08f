package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// RsyncOptions describe one incremental mirror of a local tree.
type RsyncOptions struct {
	Source         string
	Host           string
	Dest           string
	Excludes       []string
	DeleteExcluded bool
	// NoPerms stops rsync from copying POSIX modes, which Windows hosts
	// turn into DENY ACL entries.
	NoPerms bool
	Verbose bool
}

// RsyncArgs builds the rsync argument list. The source always ends with '/'
// so its contents, not the directory itself, land in Dest.
func RsyncArgs(o RsyncOptions) []string {
	args := []string{"-az", "--delete"}
	if o.DeleteExcluded {
		args = append(args, "--delete-excluded")
	}
	if o.NoPerms {
		args = append(args, "--no-perms")
	}
	if o.Verbose {
		args = append(args, "-v")
	}
	for _, e := range o.Excludes {
		args = append(args, "--exclude="+e)
	}

	src := o.Source
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}
	return append(args, src, fmt.Sprintf("%s:%s", o.Host, ToCygwinPath(o.Dest)))
}

// Rsync mirrors trees with the rsync client.
type Rsync struct {
	Runner Runner
	Binary string // empty means "rsync"
	Stdout io.Writer
	Stderr io.Writer
}

func (r *Rsync) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "rsync"
}

// Available returns an error when rsync is not installed locally.
func (r *Rsync) Available() error {
	if _, err := r.Runner.LookPath(r.binary()); err != nil {
		return fmt.Errorf("%s not found on PATH; install rsync or set sync_method = \"tar\": %w", r.binary(), err)
	}
	return nil
}

// Command builds the rsync invocation for o.
func (r *Rsync) Command(o RsyncOptions) Command {
	return Command{Name: r.binary(), Args: RsyncArgs(o), Stdout: r.Stdout, Stderr: r.Stderr}
}

// Run mirrors o.Source to o.Host:o.Dest.
func (r *Rsync) Run(ctx context.Context, o RsyncOptions) (int, error) {
	return r.Runner.Run(ctx, r.Command(o))
}

// ToCygwinPath converts a drive path (C:/foo or C:\foo) to /cygdrive/c/foo,
// the form rsync on Windows hosts understands. Other paths are returned as is.
func ToCygwinPath(p string) string {
	if len(p) < 2 || p[1] != ':' || !isLetter(p[0]) {
		return p
	}
	drive := strings.ToLower(p[:1])
	rest := strings.ReplaceAll(p[2:], `\`, "/")
	return "/cygdrive/" + drive + rest
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

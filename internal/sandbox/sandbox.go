// Package sandbox writes files atomically beneath a directory bridge owns:
// the project directory for the init scaffold, the manifest cache and the
// lock directory. Paths that resolve outside the directory, through ".."
// or a symlink, are refused.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapes is returned for a path that resolves outside its Root.
var ErrEscapes = errors.New("path escapes the sandbox root")

// Root is a directory that writes are confined to. It need not exist yet;
// WriteFile creates it along with any missing parents of the target.
type Root string

// WriteOptions controls WriteFile.
type WriteOptions struct {
	Perm    os.FileMode // file mode; 0644 when zero
	DirPerm os.FileMode // mode of created directories; 0755 when zero

	// NoClobber fails with fs.ErrExist instead of replacing an existing file.
	NoClobber bool
}

// Resolve returns the absolute, symlink-free location of rel inside r.
func (r Root) Resolve(rel string) (string, error) {
	_, target, err := r.resolve(rel)
	return target, err
}

func (r Root) resolve(rel string) (root, target string, err error) {
	if rel == "" || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", "", fmt.Errorf("%q: %w", rel, ErrEscapes)
	}
	if root, err = realPath(string(r)); err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", r, err)
	}
	if target, err = realPath(filepath.Join(root, rel)); err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", rel, err)
	}

	within, err := filepath.Rel(root, target)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%q resolves to %s, outside %s: %w", rel, target, root, ErrEscapes)
	}
	return root, target, nil
}

// realPath resolves symlinks in the longest existing prefix of p and
// appends the rest unchanged.
func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(abs)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return filepath.Clean(p), nil
		}
		missing = append(missing, filepath.Base(abs))
		abs = parent
	}
}

// WriteFile writes data to rel through a temp file in the target directory,
// so readers see either the old content or the new, never a partial file.
func (r Root) WriteFile(rel string, data []byte, opts WriteOptions) error {
	_, target, err := r.resolve(rel)
	if err != nil {
		return err
	}
	perm, dirPerm := opts.Perm, opts.DirPerm
	if perm == 0 {
		perm = 0644
	}
	if dirPerm == 0 {
		dirPerm = 0755
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".bridge-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Gone after a rename; left behind by a link or a failure.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}

	if opts.NoClobber {
		// A hard link fails instead of replacing, unlike rename.
		if err := os.Link(tmpPath, target); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%s: %w", target, fs.ErrExist)
			}
			return fmt.Errorf("creating %s: %w", target, err)
		}
		return nil
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return nil
}

// Remove deletes rel, then every parent directory that leaves empty, up to
// but not including the root. A missing file is not an error.
func (r Root) Remove(rel string) error {
	root, target, err := r.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", target, err)
	}

	prefix := root + string(filepath.Separator)
	for dir := filepath.Dir(target); strings.HasPrefix(dir, prefix); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

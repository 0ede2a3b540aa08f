// Package archive writes a gzip-compressed tar stream of selected project
// entries, the payload of a full-copy sync.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// Entry is one path to archive, relative to the root, slash-separated.
type Entry struct {
	Path    string
	Dir     bool
	Link    string // symlink target, stored as-is; empty for files and dirs
	Mode    os.FileMode
	Size    int64
	ModTime time.Time
}

// Stats summarises a written archive.
type Stats struct {
	Files int
	Dirs  int
	Links int
	Bytes int64 // uncompressed file content
}

// WriteTarGz streams entries read from root on fsys to w as a tar.gz.
// Parents must precede their children in entries so extraction can create
// directories with the right modes.
func WriteTarGz(w io.Writer, fsys afero.Fs, root string, entries []Entry) (Stats, error) {
	var stats Stats

	gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return stats, fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		if err := writeEntry(tw, fsys, root, e); err != nil {
			return stats, err
		}
		switch {
		case e.Dir:
			stats.Dirs++
		case e.Link != "":
			stats.Links++
		default:
			stats.Files++
			stats.Bytes += e.Size
		}
	}

	if err := tw.Close(); err != nil {
		return stats, fmt.Errorf("finishing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("finishing gzip stream: %w", err)
	}
	return stats, nil
}

func writeEntry(tw *tar.Writer, fsys afero.Fs, root string, e Entry) error {
	hdr := &tar.Header{
		Name:    path.Clean(e.Path),
		Mode:    int64(e.Mode.Perm()),
		ModTime: e.ModTime,
		Format:  tar.FormatPAX,
	}
	if e.Dir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		if hdr.Mode == 0 {
			hdr.Mode = 0755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", e.Path, err)
		}
		return nil
	}
	if e.Link != "" {
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = e.Link
		hdr.Mode = 0777
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", e.Path, err)
		}
		return nil
	}

	hdr.Typeflag = tar.TypeReg
	hdr.Size = e.Size
	if hdr.Mode == 0 {
		hdr.Mode = 0644
	}

	f, err := fsys.Open(filepath.Join(root, filepath.FromSlash(e.Path)))
	if err != nil {
		return fmt.Errorf("opening %s: %w", e.Path, err)
	}
	defer f.Close()

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", e.Path, err)
	}
	n, err := io.Copy(tw, f)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", e.Path, err)
	}
	if n != e.Size {
		return fmt.Errorf("archiving %s: file changed size during sync (%d != %d bytes)", e.Path, n, e.Size)
	}
	return nil
}

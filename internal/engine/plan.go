package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/bianoble/bridge/internal/archive"
	"github.com/bianoble/bridge/internal/cache"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/exclude"
)

// buildPlan walks the project once, evaluating the exclude predicate once
// per entry, hashes every included file and diffs the result against the
// previous manifest. Symlinks are planned as links, never followed; a
// link's hash covers its target so retargeting shows up as modified.
func buildPlan(fsys afero.Fs, root string, host config.Host, m *exclude.Matcher, prev *cache.Manifest, deleteExcluded bool) (*Plan, []string, error) {
	plan := &Plan{
		Host:           host.Hostname,
		Dest:           host.Path,
		Source:         root,
		Strategy:       host.SyncMethod,
		Patterns:       m.Patterns(),
		DeleteExcluded: deleteExcluded,
		Hashes:         make(map[string]string),
	}
	var skipped []string

	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if m.Excluded(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		entry := archive.Entry{Path: rel, Mode: info.Mode().Perm(), ModTime: info.ModTime()}
		switch {
		case info.IsDir():
			entry.Dir = true
		case info.Mode().IsRegular():
			hash, err := hashFile(fsys, path)
			if err != nil {
				return err
			}
			entry.Size = info.Size()
			plan.Hashes[rel] = hash
			plan.Bytes += entry.Size
		case info.Mode()&os.ModeSymlink != 0:
			target, ok, err := readLink(fsys, path)
			if err != nil {
				return err
			}
			if !ok {
				skipped = append(skipped, rel)
				return nil
			}
			entry.Link = target
			plan.Hashes[rel] = cache.ComputeHash([]byte("symlink\x00" + target))
		default:
			skipped = append(skipped, rel)
			return nil
		}
		plan.Entries = append(plan.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	diffAgainst(plan, prev, m)
	return plan, skipped, nil
}

// readLink returns a symlink's target as stored, without resolving it.
// ok is false when fsys cannot read links.
func readLink(fsys afero.Fs, path string) (target string, ok bool, err error) {
	lr, ok := fsys.(afero.LinkReader)
	if !ok {
		return "", false, nil
	}
	target, err = lr.ReadlinkIfPossible(path)
	if errors.Is(err, afero.ErrNoReadlink) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading link %s: %w", path, err)
	}
	return filepath.ToSlash(target), true, nil
}

func hashFile(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	hash, err := cache.HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hash, nil
}

// diffAgainst fills the change lists. A file that disappeared locally is
// removed remotely only by rsync; an excluded one only with delete-excluded.
func diffAgainst(plan *Plan, prev *cache.Manifest, m *exclude.Matcher) {
	var prevFiles map[string]string
	if prev != nil {
		plan.Baseline = true
		prevFiles = prev.Files
	}

	for path, hash := range plan.Hashes {
		old, ok := prevFiles[path]
		switch {
		case !ok:
			plan.New = append(plan.New, path)
		case old != hash:
			plan.Modified = append(plan.Modified, path)
		default:
			plan.Unchanged = append(plan.Unchanged, path)
		}
	}

	for path := range prevFiles {
		if _, ok := plan.Hashes[path]; ok {
			continue
		}
		deletes := plan.Strategy == config.SyncRsync
		if m.Excluded(path) {
			deletes = deletes && plan.DeleteExcluded
		}
		if deletes {
			plan.Removed = append(plan.Removed, path)
		} else {
			plan.Preserved = append(plan.Preserved, path)
		}
	}

	for _, list := range [][]string{plan.New, plan.Modified, plan.Unchanged, plan.Removed, plan.Preserved} {
		sort.Strings(list)
	}
}

// manifestFiles is what the remote directory holds after the plan ran.
func manifestFiles(plan *Plan, prev *cache.Manifest) map[string]string {
	files := make(map[string]string, len(plan.Hashes)+len(plan.Preserved))
	for path, hash := range plan.Hashes {
		files[path] = hash
	}
	if prev != nil {
		for _, path := range plan.Preserved {
			files[path] = prev.Files[path]
		}
	}
	return files
}

func sortActions(actions []FileAction) {
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Path < actions[j].Path
	})
}

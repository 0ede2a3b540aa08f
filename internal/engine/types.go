package engine

import (
	"time"

	"github.com/bianoble/bridge/internal/archive"
	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/reconnect"
)

// FileAction represents what a sync does, or would do, to a single file.
type FileAction struct {
	Path   string
	Action string // "new", "modified", "unchanged", "removed", "preserved"
}

// Plan is everything a sync will do, computed locally before any process
// is spawned.
type Plan struct {
	Host           string // ssh address
	Dest           string // remote directory
	Source         string // local project root
	Strategy       config.SyncMethod
	Patterns       []string
	DeleteExcluded bool

	// Entries are the directories, files and symlinks to transfer, parents
	// first.
	Entries []archive.Entry
	// Hashes maps every planned file and symlink to its sha256.
	Hashes map[string]string
	Bytes  int64

	// Diff against the last successful sync to the same destination. All
	// lists are sorted. Without a previous manifest every file is New.
	New       []string
	Modified  []string
	Unchanged []string
	Removed   []string // deleted remotely by this sync
	Preserved []string // gone locally but left in place remotely
	Baseline  bool     // a previous manifest existed
}

// Actions flattens the diff into per-file actions sorted by path.
func (p *Plan) Actions() []FileAction {
	var out []FileAction
	add := func(paths []string, action string) {
		for _, path := range paths {
			out = append(out, FileAction{Path: path, Action: action})
		}
	}
	add(p.New, "new")
	add(p.Modified, "modified")
	add(p.Unchanged, "unchanged")
	add(p.Removed, "removed")
	add(p.Preserved, "preserved")
	sortActions(out)
	return out
}

// SyncResult holds the outcome of a sync operation.
type SyncResult struct {
	Plan     *Plan
	DryRun   bool
	Duration time.Duration
	Warnings []string
}

// RunResult holds the outcome of a remote execution.
type RunResult struct {
	Host        string
	RemoteLine  string // the exact command line handed to ssh
	RecoverLine string
	ExitCode    int
	DryRun      bool
	LockName    string // empty when no lock was taken
	Session     *reconnect.Session
	Sync        *SyncResult
}

// CopyResult holds the outcome of an upload or download.
type CopyResult struct {
	Host   string
	Local  string
	Remote string
	DryRun bool
}

// Package lock serialises bridge invocations that target the same remote
// host. The lock is an OS advisory lock on a file in the machine-wide temp
// directory, so it only coordinates processes on this machine and is
// released by the kernel when the holder exits.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultName is used when lock = true or an empty name is given.
const DefaultName = "default"

// DirEnv overrides the directory lock files live in.
const DirEnv = "BRIDGE_LOCK_DIR"

// DefaultDir returns the directory shared by every bridge process on this
// machine.
func DefaultDir() string {
	if dir := strings.TrimSpace(os.Getenv(DirEnv)); dir != "" {
		return dir
	}
	return os.TempDir()
}

// Path returns the lock file for a (host, name) pair inside dir. It is a pure
// function of its inputs so every process derives the same file.
//
// Plain names give bridge-<host>-<name>.lock. Anything outside the safe set
// (and any '-' in the name, which would make the split ambiguous) is replaced
// with '_' and a hash of the original pair is appended after '~' so that
// distinct pairs never share a file.
func Path(dir, host, name string) string {
	if name == "" {
		name = DefaultName
	}
	h, hostChanged := sanitize(host, true)
	n, nameChanged := sanitize(name, false)

	file := fmt.Sprintf("bridge-%s-%s", h, n)
	if hostChanged || nameChanged {
		sum := sha256.Sum256([]byte(host + "\x00" + name))
		file += "~" + hex.EncodeToString(sum[:8])
	}
	return filepath.Join(dir, file+".lock")
}

func sanitize(s string, allowDash bool) (string, bool) {
	if s == "" {
		return "_", true
	}
	var b strings.Builder
	changed := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		case r == '-' && allowDash:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	return b.String(), changed
}

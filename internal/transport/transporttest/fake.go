// Package transporttest provides a recording transport.Runner for tests.
package transporttest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bianoble/bridge/internal/transport"
)

// Call is one recorded invocation. Stdin holds everything the command read.
type Call struct {
	transport.Command
	Stdin []byte
}

// Line renders the call like a shell command line.
func (c Call) Line() string { return c.Command.String() }

// Fake records commands instead of running them. Handle decides the status
// of each call; when nil every call exits 0.
type Fake struct {
	Handle  func(call Call) (int, error)
	Missing map[string]bool // programs LookPath reports as absent

	mu    sync.Mutex
	calls []Call
}

// Run implements transport.Runner.
func (f *Fake) Run(ctx context.Context, c transport.Command) (int, error) {
	call := Call{Command: c}
	if c.Stdin != nil {
		data, err := io.ReadAll(c.Stdin)
		if err != nil {
			return 1, fmt.Errorf("reading stdin of %s: %w", c.Name, err)
		}
		call.Stdin = data
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 1, err
	}
	if f.Handle == nil {
		return 0, nil
	}
	return f.Handle(call)
}

// LookPath implements transport.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Programs returns the program name of every call in order.
func (f *Fake) Programs() []string {
	var names []string
	for _, c := range f.Calls() {
		names = append(names, c.Name)
	}
	return names
}

// Last returns the final argument of a call, which for ssh is the remote
// command line.
func (c Call) Last() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// IsProbe reports whether the call is an ssh reachability check.
func (c Call) IsProbe() bool {
	return c.Name == "ssh" && c.Last() == "exit 0" && strings.Contains(strings.Join(c.Args, " "), "BatchMode=yes")
}

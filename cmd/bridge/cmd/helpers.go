package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/bianoble/bridge/internal/transport"
	"github.com/bianoble/bridge/pkg/bridge"
)

// stdout receives command results. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// newClient loads the layered config and builds a client for the selected
// host. override applies command-line flags on top of the host profile.
func newClient(override func(h *bridge.Host)) (*bridge.Client, error) {
	return bridge.New(bridge.Options{
		ConfigPath: configPath,
		Host:       hostName,
		Override:   override,
		Verbose:    verbose,
		Logger:     logger,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Progress:   progressWriter(),
	})
}

// progressWriter returns stderr when waiting dots make sense there.
func progressWriter() io.Writer {
	if quiet || !transport.IsTerminal(os.Stderr) {
		return nil
	}
	return os.Stderr
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Fprintf(stdout, "  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

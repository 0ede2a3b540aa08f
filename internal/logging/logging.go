// Package logging builds the diagnostic logger shared by every command.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Environment overrides, applied after the command-line flags.
const (
	EnvLogLevel   = "BRIDGE_LOG_LEVEL"
	EnvLogNoColor = "BRIDGE_LOG_NOCOLOR"
)

// Options come from the global flags.
type Options struct {
	Verbose bool
	Quiet   bool
	NoColor bool
}

// New returns a logger writing to w. Colour is used only when w is a
// terminal and neither --no-color, NO_COLOR nor BRIDGE_LOG_NOCOLOR is set.
func New(w io.Writer, opts Options) *log.Logger {
	level := log.InfoLevel
	switch {
	case opts.Quiet:
		level = log.ErrorLevel
	case opts.Verbose:
		level = log.DebugLevel
	}
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: level == log.DebugLevel,
		TimeFormat:      "15:04:05.000",
	})

	if !colorEnabled(w, opts.NoColor) {
		logger.SetColorProfile(termenv.Ascii)
	}
	return logger
}

func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok && v {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseLevel(raw string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return log.DebugLevel, true
	case "info":
		return log.InfoLevel, true
	case "warn", "warning":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	}
	return log.InfoLevel, false
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Package shell turns a user command into the command line a remote
// interpreter runs: the optional wrapper template is applied first, then the
// result is prefixed with a change into the host's project directory using
// the quoting rules of that host's shell.
package shell

import (
	"fmt"
	"strings"

	"github.com/bianoble/bridge/internal/config"
)

// Placeholder marks where the command goes inside a wrapper template.
const Placeholder = "{}"

// Wrap substitutes command for every Placeholder in template. An empty
// template returns command unchanged. A template without a placeholder is
// returned as is and replaces the command entirely.
func Wrap(template, command string) string {
	if template == "" {
		return command
	}
	return strings.ReplaceAll(template, Placeholder, command)
}

// Adapter renders commands for one remote shell.
type Adapter interface {
	// Adapt returns a command line that runs command inside dir.
	Adapt(dir, command string) string
	// Mkdir returns a command line that creates dir (and parents) if missing.
	Mkdir(dir string) string
	// Program is the interpreter started for an interactive session.
	Program() string
}

// For returns the adapter for s. Unknown shells fall back to Bash; config
// validation rejects them before they get here.
func For(s config.Shell) Adapter {
	switch s {
	case config.ShellPowerShell:
		return PowerShell{}
	case config.ShellCmd:
		return Cmd{}
	default:
		return Bash{}
	}
}

// Bash targets POSIX shells.
type Bash struct{}

func (Bash) Adapt(dir, command string) string {
	return fmt.Sprintf(`cd "%s" && %s`, escapeDoubleQuoted(dir), command)
}

func (Bash) Mkdir(dir string) string {
	return fmt.Sprintf(`mkdir -p "%s"`, escapeDoubleQuoted(dir))
}

func (Bash) Program() string { return "bash" }

// PowerShell runs the command through `powershell -Command` so it works
// whatever the login shell of the ssh server is.
type PowerShell struct{}

func (PowerShell) Adapt(dir, command string) string {
	return fmt.Sprintf(`powershell -Command "cd '%s'; %s"`,
		escapeCommandArg(escapeSingleQuoted(dir)), escapeCommandArg(command))
}

func (PowerShell) Mkdir(dir string) string {
	return fmt.Sprintf(`powershell -Command "New-Item -ItemType Directory -Force -Path '%s' | Out-Null"`,
		escapeCommandArg(escapeSingleQuoted(dir)))
}

// escapeCommandArg keeps s inside the double-quoted -Command argument.
func escapeCommandArg(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func (PowerShell) Program() string { return "powershell" }

// Cmd targets cmd.exe.
type Cmd struct{}

func (Cmd) Adapt(dir, command string) string {
	return fmt.Sprintf(`cd /d "%s" && %s`, windowsPath(dir), command)
}

// Mkdir never fails when the directory already exists.
func (Cmd) Mkdir(dir string) string {
	return fmt.Sprintf(`mkdir "%s" 2>nul || echo.`, windowsPath(dir))
}

func (Cmd) Program() string { return "cmd" }

var doubleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

func escapeDoubleQuoted(s string) string {
	return doubleQuoteEscaper.Replace(s)
}

func escapeSingleQuoted(s string) string {
	return strings.ReplaceAll(s, `'`, `''`)
}

// windowsPath converts separators to backslashes and doubles quotes, which
// is how cmd.exe reads a literal quote inside a quoted argument.
func windowsPath(s string) string {
	s = strings.ReplaceAll(s, "/", `\`)
	return strings.ReplaceAll(s, `"`, `""`)
}

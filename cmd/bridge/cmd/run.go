package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/pkg/bridge"
)

var (
	runSync             bool
	runNoAutoExclude    bool
	runReconnectCommand string
	runReconnectTimeout int
	runLock             string
	runLockTimeout      int
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command in the project directory on the host",
	Long: `Runs a command on the host inside the configured project path, wrapped by
the host's wrapper template. ${VAR} references are resolved from the process
environment and the project's .env files before anything is sent.

Flags after the command are passed to it: 'bridge run ls -la' runs 'ls -la'.

With --sync the project is transferred first. With --lock only one run per
host and lock name proceeds at a time on this machine. If the connection
drops (ssh exit 255) and a reconnect command is configured, bridge waits for
the host to come back and runs the reconnect command instead.

The exit status is the remote command's own status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")

		client, err := newClient(runOverrides(cmd))
		if err != nil {
			return err
		}

		result, err := client.Run(cmd.Context(), bridge.RunOptions{
			Command:       command,
			Sync:          runSync,
			DryRun:        dryRun,
			NoAutoExclude: runNoAutoExclude,
		})
		if err != nil {
			return err
		}

		if dryRun {
			if result.Sync != nil {
				printSync(result.Sync)
			}
			info("Would run on %s:", result.Host)
			info("  %s", result.RemoteLine)
			if result.RecoverLine != "" {
				info("After reconnect would run:")
				info("  %s", result.RecoverLine)
			}
			return nil
		}
		if result.Session != nil && result.Session.Attempts > 0 {
			detail("reconnected after %d probe(s), recovery exited %d", result.Session.Attempts, result.ExitCode)
		}
		return nil
	},
}

// runOverrides applies the flags the user actually set to the host profile.
func runOverrides(cmd *cobra.Command) func(h *bridge.Host) {
	flags := cmd.Flags()
	return func(h *bridge.Host) {
		if flags.Changed("reconnect-command") {
			h.ReconnectCommand = runReconnectCommand
		}
		if flags.Changed("reconnect-timeout") {
			h.ReconnectTimeout = runReconnectTimeout
		}
		if flags.Changed("lock") {
			h.Lock = parseLockFlag(runLock)
		}
		if flags.Changed("lock-timeout") {
			h.LockTimeout = runLockTimeout
		}
	}
}

// parseLockFlag reads --lock, --lock=NAME and --lock=false.
func parseLockFlag(v string) config.LockSetting {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "off", "no":
		return config.LockSetting{Kind: config.LockOff}
	case "", "true", config.DefaultLockName:
		return config.LockSetting{Kind: config.LockDefault}
	}
	return config.LockSetting{Kind: config.LockNamed, Name: strings.TrimSpace(v)}
}

func init() {
	f := runCmd.Flags()
	f.SetInterspersed(false)
	f.BoolVarP(&runSync, "sync", "s", false, "sync the project before running")
	f.BoolVar(&runNoAutoExclude, "no-auto-exclude", false, "do not exclude .DS_Store and ._* files when syncing")
	f.StringVar(&runReconnectCommand, "reconnect-command", "", "command to run after the host comes back from a dropped connection")
	f.IntVar(&runReconnectTimeout, "reconnect-timeout", config.DefaultReconnectTimeout, "seconds to wait for the host to come back")
	f.StringVar(&runLock, "lock", "", "take the advisory lock (optionally named: --lock=NAME)")
	f.Lookup("lock").NoOptDefVal = config.DefaultLockName
	f.IntVar(&runLockTimeout, "lock-timeout", config.DefaultLockTimeout, "seconds to wait for the lock")
	rootCmd.AddCommand(runCmd)
}

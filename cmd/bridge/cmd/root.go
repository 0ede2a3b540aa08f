package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/internal/engine"
	"github.com/bianoble/bridge/internal/logging"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath string
	hostName   string
	verbose    bool
	quiet      bool
	dryRun     bool
	noColor    bool
)

// logger is built from the global flags before any command runs.
var logger = log.Default()

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run project commands on a remote host",
	Long: `bridge runs commands on a remote development host from a local project
checkout. It syncs the project over ssh (tar or rsync), substitutes ${VAR}
references from .env files, wraps the command for the host's shell, can
serialise runs with a local advisory lock, and waits out connection loss
(for example a reboot) before running a recovery command.

Hosts are configured in bridge.toml at the project root; run 'bridge init'
to create one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(os.Stderr, logging.Options{Verbose: verbose, Quiet: quiet, NoColor: noColor})
		log.SetDefault(logger)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "bridge %s\n", version)
		fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		fmt.Fprintf(stdout, "  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: nearest bridge.toml)")
	rootCmd.PersistentFlags().StringVarP(&hostName, "host", "H", "", "host to use (default: default_host)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without touching the host")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns the process exit status.
// Interrupts cancel the command context; the run then exits with 130.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return engine.ExitOK
	}
	if ctx.Err() != nil {
		errorf("interrupted")
		return engine.ExitInterrupted
	}
	if !engine.Silent(err) {
		errorf("%s", err)
	}
	return engine.ExitCode(err)
}

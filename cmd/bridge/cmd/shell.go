package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/pkg/bridge"
)

var shellSync bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive shell in the project directory on the host",
	Long: `Opens the host's shell (bash, powershell or cmd) in the project path with a
terminal attached. The wrapper template applies, so a wrapper that enters a
container lands the shell inside it. Shells never take the advisory lock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}

		result, err := client.Shell(cmd.Context(), bridge.RunOptions{Sync: shellSync, DryRun: dryRun})
		if err != nil {
			return err
		}
		if dryRun {
			info("Would open on %s:", result.Host)
			info("  %s", result.RemoteLine)
		}
		return nil
	},
}

func init() {
	shellCmd.Flags().BoolVarP(&shellSync, "sync", "s", false, "sync the project before opening the shell")
	rootCmd.AddCommand(shellCmd)
}

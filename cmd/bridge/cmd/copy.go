package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/pkg/bridge"
)

var (
	uploadDest   string
	downloadDest string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Copy a local file or directory into the project directory on the host",
	Long: `Copies a local file or directory with scp into the host's project path.
--dest is relative to the project path and defaults to the file's base name.
Missing remote directories are created first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		result, err := client.Upload(cmd.Context(), args[0], uploadDest, dryRun)
		if err != nil {
			return err
		}
		printCopy("Uploaded", result, result.Local, result.Host+":"+result.Remote)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <file>",
	Short: "Copy a file or directory from the host",
	Long: `Copies a file or directory from the host with scp. Relative paths are
resolved under the project path; absolute, ~ and drive-letter paths are used
as given. --dest defaults to the file's base name in the current directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		result, err := client.Download(cmd.Context(), args[0], downloadDest, dryRun)
		if err != nil {
			return err
		}
		printCopy("Downloaded", result, result.Host+":"+result.Remote, result.Local)
		return nil
	},
}

func printCopy(verb string, result *bridge.CopyResult, from, to string) {
	if result.DryRun {
		info("Would copy %s → %s", from, to)
		return
	}
	info("%s %s → %s", verb, from, to)
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDest, "dest", "", "destination relative to the host's project path")
	downloadCmd.Flags().StringVar(&downloadDest, "dest", "", "local destination")
	rootCmd.AddCommand(uploadCmd, downloadCmd)
}

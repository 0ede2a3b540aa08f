package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/pkg/bridge"
)

var (
	syncNoAutoExclude  bool
	syncDeleteExcluded bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Transfer the project directory to the host",
	Long: `Transfers the project directory to the host's path using the host's
sync_method:

  tar    streams a compressed archive of every included file; never deletes
         remote files.
  rsync  transfers only changes and deletes remote files that no longer
         exist locally. With --delete-excluded it also deletes remote files
         matching an exclude pattern.

Paths matching sync.exclude are skipped; .DS_Store and ._* are skipped too
unless --no-auto-exclude is given. With --dry-run the change list is computed
locally against the last successful sync and nothing is sent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}

		result, err := client.Sync(cmd.Context(), bridge.SyncOptions{
			DryRun:         dryRun,
			NoAutoExclude:  syncNoAutoExclude,
			DeleteExcluded: syncDeleteExcluded,
		})
		if err != nil {
			return err
		}
		printSync(result)
		return nil
	},
}

// printSync reports a sync plan. Unchanged files are listed only in verbose
// mode.
func printSync(result *bridge.SyncResult) {
	plan := result.Plan
	if plan == nil {
		return
	}
	if result.DryRun {
		info("Dry run: nothing sent to %s.", plan.Host)
	}

	for _, a := range plan.Actions() {
		switch a.Action {
		case "unchanged", "preserved":
			detail("%-10s %s", a.Action, a.Path)
		default:
			info("  %-10s %s", a.Action, a.Path)
		}
	}

	verb := "Synced"
	if result.DryRun {
		verb = "Would sync"
	}
	summary := []any{verb, len(plan.Hashes), humanSize(plan.Bytes), plan.Host, plan.Dest, plan.Strategy}
	if !plan.Baseline {
		info("%s %d files (%s) to %s:%s via %s.", summary...)
		return
	}
	info("%s %d files (%s) to %s:%s via %s: %d new, %d modified, %d removed, %d unchanged.",
		append(summary, len(plan.New), len(plan.Modified), len(plan.Removed), len(plan.Unchanged))...)
	if result.Duration > 0 {
		detail("took %s", result.Duration.Round(time.Millisecond))
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncNoAutoExclude, "no-auto-exclude", false, "do not exclude .DS_Store and ._* files")
	syncCmd.Flags().BoolVar(&syncDeleteExcluded, "delete-excluded", false, "with rsync, also delete excluded files on the host")
	rootCmd.AddCommand(syncCmd)
}

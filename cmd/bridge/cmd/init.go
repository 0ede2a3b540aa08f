package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bianoble/bridge/internal/config"
	"github.com/bianoble/bridge/internal/sandbox"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter bridge.toml configuration",
	Long: `Creates a bridge.toml in the current directory (or at --config) with one
example host and every setting documented.

Use --force to overwrite an existing configuration file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if outPath == "" {
			outPath = config.ProjectFileNames[0]
		}
		abs, err := filepath.Abs(outPath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		outPath = abs

		root := sandbox.Root(filepath.Dir(outPath))
		err = root.WriteFile(filepath.Base(outPath), []byte(config.Template()), sandbox.WriteOptions{
			Perm:      0644,
			NoClobber: !initForce,
		})
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
		}
		if err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Set hostname and path under [hosts.dev]")
		info("  2. Run 'bridge sync --dry-run' to preview what gets transferred")
		info("  3. Run 'bridge run -s <command>' to sync and run")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var hostsYAML bool

var hostsCmd = &cobra.Command{
	Use:     "hosts",
	Aliases: []string{"info"},
	Short:   "List configured hosts",
	Long: `Lists the hosts defined in the merged configuration, marking the default.
With --verbose the config layers and the sync manifest cache are shown too.
--yaml prints the same information as YAML.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		result, err := client.Info(version)
		if err != nil {
			return err
		}

		if hostsYAML {
			enc := yaml.NewEncoder(stdout)
			enc.SetIndent(2)
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encoding hosts: %w", err)
			}
			return enc.Close()
		}

		for _, h := range result.Hosts {
			marker := " "
			if h.Default {
				marker = "*"
			}
			lock := ""
			if h.Lock != "" {
				lock = fmt.Sprintf(", lock %s", h.Lock)
			}
			fmt.Fprintf(stdout, "%s %-12s %s:%s (%s, %s%s)\n", marker, h.Name, h.Hostname, h.Path, h.Shell, h.SyncMethod, lock)
		}

		if len(result.ConfigChain) > 0 {
			detail("config chain:")
			for _, layer := range result.ConfigChain {
				status := "not found"
				if layer.Loaded {
					status = "loaded"
				}
				detail("  %-10s %s (%s)", layer.Level+":", layer.Path, status)
			}
		}
		if result.CacheDir != "" {
			detail("cache dir:  %s (%s)", result.CacheDir, humanSize(result.CacheSize))
		}
		return nil
	},
}

func init() {
	hostsCmd.Flags().BoolVar(&hostsYAML, "yaml", false, "print as YAML")
	rootCmd.AddCommand(hostsCmd)
}

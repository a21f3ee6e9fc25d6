package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// newWatchesCmd creates the watches command.
func newWatchesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watches",
		Short: "List roots the index service currently watches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadToolConfig(cmd)
			if err != nil {
				return err
			}
			client, err := newServiceClient(cfg)
			if err != nil {
				return err
			}

			roots, err := client.WatchList(cmd.Context())
			if err != nil {
				return err
			}
			sort.Strings(roots)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string][]string{"roots": roots})
			}

			if len(roots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no watched roots")
				return nil
			}
			for _, root := range roots {
				fmt.Fprintln(cmd.OutOrStdout(), root)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output roots as JSON")

	return cmd
}

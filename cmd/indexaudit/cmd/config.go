package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/indexaudit/internal/config"
)

// newConfigCmd creates the config command.
func newConfigCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "config [path]",
		Short: "Compare the live service config with the on-disk file",
		Long: `Fetch the index service's live configuration for the root and compare
it structurally against the ` + config.ServiceConfigFile + ` file at the root.
Differences are reported, never corrected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			root, err := filepath.Abs(path)
			if err != nil {
				return err
			}

			cfg, err := loadToolConfig(cmd)
			if err != nil {
				return err
			}
			client, err := newServiceClient(cfg)
			if err != nil {
				return err
			}

			live, err := client.GetConfig(cmd.Context(), root)
			if err != nil {
				return err
			}

			onDisk, present, err := config.LoadServiceConfig(root)
			var findings []string
			if err != nil {
				findings = []string{fmt.Sprintf("on-disk %s unusable: %v", config.ServiceConfigFile, err)}
			} else if present {
				findings = config.DiffServiceConfig(onDisk, live)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"root":     root,
					"live":     live,
					"on_disk":  onDisk,
					"present":  present,
					"findings": findings,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root: %s\n", root)
			fmt.Fprintf(out, "live config: %s\n", formatConfig(live))
			if present {
				fmt.Fprintf(out, "on-disk %s: %s\n", config.ServiceConfigFile, formatConfig(onDisk))
			} else {
				fmt.Fprintf(out, "on-disk %s: absent\n", config.ServiceConfigFile)
			}
			for _, finding := range findings {
				fmt.Fprintf(out, "finding: %s\n", finding)
			}
			if present && len(findings) == 0 {
				fmt.Fprintln(out, "configurations agree")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output comparison as JSON")

	return cmd
}

func formatConfig(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/indexaudit/internal/audit"
	"github.com/Aman-CERP/indexaudit/internal/output"
)

// newCheckCmd creates the check command. The root command without a
// subcommand runs the same audit.
func newCheckCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Reconcile the index against the filesystem",
		Long: `Crawl the tree rooted at path (default: current directory) and query
the index service for its view of the same tree, then report phantoms,
missing entries, and metadata mismatches.

Divergences are findings, not failures: the exit status is non-zero
only when the service cannot be reached or answers incorrectly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

// runCheck is the shared audit path for the root and check commands.
func runCheck(cmd *cobra.Command, args []string, jsonOutput, noColor bool) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	cfg, err := loadToolConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newServiceClient(cfg)
	if err != nil {
		return err
	}

	report, err := audit.New(client).Run(cmd.Context(), audit.Options{
		Root:            path,
		CaseSensitive:   cfg.EffectiveCaseSensitive(),
		ExtraIgnoreDirs: cfg.IgnoreDirs,
	})
	if err != nil {
		return err
	}

	renderer := output.NewRenderer(cmd.OutOrStdout(), output.Options{
		JSON:    jsonOutput,
		NoColor: noColor,
	})
	return renderer.Render(report)
}

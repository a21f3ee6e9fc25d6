// Package cmd provides the CLI commands for indexaudit.
package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/indexaudit/internal/config"
	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
	"github.com/Aman-CERP/indexaudit/internal/logging"
	"github.com/Aman-CERP/indexaudit/internal/watchman"
	"github.com/Aman-CERP/indexaudit/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	sockname   string
	timeout    time.Duration
	caseMode   string
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the indexaudit CLI.
func NewRootCmd() *cobra.Command {
	var jsonOutput bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "indexaudit [path]",
		Short: "Audit a file index service against the filesystem",
		Long: `indexaudit crawls a watched directory tree and queries the index
service for the same tree, then reconciles the two views. It reports
entries the index believes in that are not on disk, entries on disk the
index does not know, and entries whose recorded metadata has drifted.

The service is never asked to correct anything. Findings are reported;
fixing the index is the operator's call.`,
		Version: version.Version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, jsonOutput, noColor)
		},
	}

	cmd.SetVersionTemplate("indexaudit version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&sockname, "sockname", "", "Index service socket path (default: $WATCHMAN_SOCK)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request service timeout (default: 30s)")
	cmd.PersistentFlags().StringVar(&caseMode, "case-sensitive", "auto", "Path key comparison: auto, true, or false")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Tool config file (default: ~/.indexaudit/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.indexaudit/logs/")

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newWatchesCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog output to the rotating log file so stdout
// stays reserved for the report.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadToolConfig resolves the effective configuration: YAML file first,
// then flag overrides on top.
func loadToolConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("sockname") {
		cfg.Sockname = sockname
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}

	switch caseMode {
	case "auto":
	case "true":
		v := true
		cfg.CaseSensitive = &v
	case "false":
		v := false
		cfg.CaseSensitive = &v
	default:
		return cfg, auditerrors.ValidationError(
			fmt.Sprintf("invalid --case-sensitive value %q (want auto, true, or false)", caseMode), nil)
	}

	return cfg, cfg.Validate()
}

// newServiceClient builds the index service client from the effective
// configuration.
func newServiceClient(cfg config.Config) (*watchman.Client, error) {
	return watchman.NewClient(watchman.Options{
		SockPath: cfg.Sockname,
		Timeout:  cfg.Timeout,
	})
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

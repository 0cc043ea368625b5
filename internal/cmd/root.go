package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/tsvalidate/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for tsvalidate
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tsvalidate",
		Short: "Validate type declaration packages against the registry",
		Long: `tsvalidate installs published type declaration packages into isolated
sandboxes and type-checks them, many packages at a time.

Each package gets its own sandbox under the output path. Failed sandboxes are
kept for inspection; the merged report is written to the log directory.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .tsvalidate/config.yaml)")

	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewReportCommand())

	return cmd
}

// loadConfig reads --config, or .tsvalidate/config.yaml in the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

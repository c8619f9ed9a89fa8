// Package app provides the commands of the ToolHive replication server.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "thv-replication-server",
	DisableAutoGenTag: true,
	Short:             "ToolHive replication server",
	Long: `ToolHive replication server keeps secondary nodes in sync with a primary.

A primary records checksums and change events for its resources and aggregates
the status of every secondary. A secondary clones and fetches resources from
the primary, verifies them against primary checksums and reports its status.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command of the replication server
func NewRootCmd() *cobra.Command {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(verifyCmd)

	return rootCmd
}

// loadConfig reads the file named by --config or THV_REPLICATION_CONFIG
func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		return nil, fmt.Errorf("a configuration file is required: set --config or %s_CONFIG", config.EnvPrefix)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath,
		"node", cfg.Node.Name, "role", cfg.Node.Role, "storage", cfg.GetStorageType())
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
		} else {
			slog.Info("thv-replication-server version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

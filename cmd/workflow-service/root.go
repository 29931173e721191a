package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/config"
)

const version = "0.1.0"

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "workflow-service",
	Short: "Workflow coordination engine for manufacturing analytics",
	Long: `workflow-service coordinates multi-step analytics workflows: it
resolves step dependencies, dispatches agents, transformations and
webhooks, and tracks every execution's state.

Run a workflow once with "run", or start the HTTP service with "serve".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("workflow-service %s\n", version))

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the service version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("workflow-service %s\n", version)
	},
}

// loadConfig resolves the effective configuration: defaults, then the
// --config file when given, then environment overrides. The --debug
// flag wins over the configured log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().WithConfigPath(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

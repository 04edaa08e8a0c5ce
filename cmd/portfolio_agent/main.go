// Package main provides the portfolio_agent command: an HTTP API and a batch CLI that turn resumes
// into portfolio layouts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-pipeline/internal/config"
	"github.com/jonathan/portfolio-pipeline/internal/observability"
)

var (
	configPath string
	verbose    bool

	// appConfig is loaded once per invocation before any subcommand runs
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "portfolio_agent",
	Short: "Resume to portfolio generator",
	Long: `portfolio_agent extracts a candidate profile from a resume (PDF, PNG or JPEG), selects
portfolio components for it and returns a themed layout, either over HTTP or from the command line.

Configuration is read from the environment and optionally from a JSON file passed with --config.
Values in the file take precedence over the environment.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func loadConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	appConfig = cfg

	observability.Init(os.Stderr, cfg.LogLevel)
	slog.Debug("configuration loaded", "port", cfg.Port, "database", cfg.DatabaseURL != "", "redis", cfg.RedisURL != "")
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

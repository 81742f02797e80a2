// Package cmd wires the CLI. Configuration flows from flags and
// APIAUDIT_* environment variables through viper into one Config; no
// YAML files are read.
package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finsec-lab/apiaudit/internal/config"
	"github.com/finsec-lab/apiaudit/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "apiaudit",
	Short: "OpenAPI-driven security audit engine for banking APIs",
	Long: `apiaudit reads an OpenAPI document, synthesizes positive and negative
request scenarios for every documented operation, dispatches them against
a live target under strict pacing, validates each response against the
documented contract and runs a set of pluggable security checks
(broken authentication, security misconfiguration, inventory management).

Every run emits a JSON and a Markdown report, even when it aborts early.

USAGE:
  apiaudit scan --openapi https://bank.example.com/openapi.json
  apiaudit scan --base-url https://bank.example.com --auth bearer:TOKEN
  apiaudit plugins

Credentials resolve in order: --auth 'bearer:TOKEN', the BANK_TOKEN or
APIAUDIT_TOKEN environment variable, then a client-credential exchange
against the target's token endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux.
			_ = log.Sync()
		}
	},
}

func Execute() error {
	// A .env next to the binary is a convenience for local runs;
	// absence is not an error.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "APIAUDIT_LOG_LEVEL")
	viper.BindEnv("logger.format", "APIAUDIT_LOG_FORMAT")

	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	rootCmd.PersistentFlags().Bool("follow-redirects", false, "follow HTTP redirects")
	viper.BindPFlag("http.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("http.follow_redirects", rootCmd.PersistentFlags().Lookup("follow-redirects"))

	rootCmd.PersistentFlags().Float64("rate-limit", 10, "requests per second rate limit")
	rootCmd.PersistentFlags().Int("rate-burst", 5, "rate limit burst size")
	viper.BindPFlag("rate_limit.requests_per_second", rootCmd.PersistentFlags().Lookup("rate-limit"))
	viper.BindPFlag("rate_limit.burst_size", rootCmd.PersistentFlags().Lookup("rate-burst"))
	viper.BindEnv("rate_limit.requests_per_second", "APIAUDIT_RATE_LIMIT")

	// Credentials come from flags or environment, never config files.
	viper.BindEnv("auth.client_id", "APIAUDIT_CLIENT_ID")
	viper.BindEnv("auth.client_secret", "APIAUDIT_CLIENT_SECRET")

	viper.SetDefault("logger.output_paths", []string{"stdout"})
	viper.SetDefault("rate_limit.mutating_delay", "1000ms")
	viper.SetDefault("rate_limit.read_delay", "300ms")
	viper.SetDefault("report.dir", "reports")
}

func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APIAUDIT")

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "reports"
	}

	return nil
}

// GetConfig returns the resolved configuration. Nil before PreRun.
func GetConfig() *config.Config {
	return cfg
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finsec-lab/apiaudit/internal/auditor"
	"github.com/finsec-lab/apiaudit/internal/report"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a full audit against a target API",
	Long: `Runs the complete audit: loads the OpenAPI document, resolves
credentials, optionally establishes an account-access consent, dispatches
generated request scenarios, executes every registered security plugin
and probes common operational paths.

DELETE operations are synthesized for coverage but never dispatched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			color.Yellow("\nInterrupt received, finishing current request and writing report...\n")
			cancel()
		}()

		color.Cyan("apiaudit scan\n")
		if cfg.Scan.OpenAPILocation != "" {
			color.White("Specification: %s\n", cfg.Scan.OpenAPILocation)
		}
		if cfg.Scan.BaseURL != "" {
			color.White("Target: %s\n", cfg.Scan.BaseURL)
		}

		res, err := auditor.New(*cfg, log).Run(ctx)
		if res.JSONPath != "" {
			report.PrintSummary(res.Report)
			fmt.Printf("\nReports: %s, %s\n", res.JSONPath, res.MDPath)
		}
		if err != nil {
			return err
		}

		if res.Report.Summary.BySeverity[types.SeverityHigh] > 0 {
			color.Red("\nHigh severity findings present\n")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("openapi", "", "OpenAPI document location (URL or file path)")
	scanCmd.Flags().String("base-url", "", "target base URL (overrides the document's servers)")
	scanCmd.Flags().String("auth", "", "credential in 'bearer:TOKEN' form")
	scanCmd.Flags().String("client-id", "", "client id for the token exchange")
	scanCmd.Flags().String("client-secret", "", "client secret for the token exchange")
	scanCmd.Flags().String("requesting-bank", "", "bank id sent as X-Requesting-Bank on interbank scenarios")
	scanCmd.Flags().String("interbank-client-id", "", "client id used for interbank account scenarios")
	scanCmd.Flags().Bool("consent", false, "create an account-access consent before account scenarios")
	scanCmd.Flags().StringSlice("header", nil, "extra header in 'Name: Value' form (repeatable)")
	scanCmd.Flags().Bool("verbose", false, "log request and response details")
	scanCmd.Flags().String("report-dir", "reports", "directory for report output")
	scanCmd.Flags().String("report-title", "", "title used in the generated report")

	viper.BindPFlag("scan.openapi", scanCmd.Flags().Lookup("openapi"))
	viper.BindPFlag("scan.base_url", scanCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("auth.bearer_arg", scanCmd.Flags().Lookup("auth"))
	viper.BindPFlag("auth.client_id", scanCmd.Flags().Lookup("client-id"))
	viper.BindPFlag("auth.client_secret", scanCmd.Flags().Lookup("client-secret"))
	viper.BindPFlag("scan.requesting_bank", scanCmd.Flags().Lookup("requesting-bank"))
	viper.BindPFlag("scan.interbank_client_id", scanCmd.Flags().Lookup("interbank-client-id"))
	viper.BindPFlag("consent.create", scanCmd.Flags().Lookup("consent"))
	viper.BindPFlag("scan.extra_headers", scanCmd.Flags().Lookup("header"))
	viper.BindPFlag("scan.verbose", scanCmd.Flags().Lookup("verbose"))
	viper.BindPFlag("report.dir", scanCmd.Flags().Lookup("report-dir"))
	viper.BindPFlag("report.title", scanCmd.Flags().Lookup("report-title"))

	viper.BindEnv("scan.openapi", "APIAUDIT_OPENAPI")
	viper.BindEnv("scan.base_url", "APIAUDIT_BASE_URL")
}

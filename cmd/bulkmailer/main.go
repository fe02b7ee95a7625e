package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lattiq/bulkmailer"
)

var (
	configPath     string
	recipientsPath string
	textTmplPath   string
	htmlTmplPath   string
	logDir         string
	dryRun         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bulkmailer",
		Short: "Send personalized bulk email over SMTP",
		Long: `bulkmailer reads recipients from a CSV file, substitutes per-recipient
fields into subject/body templates, and sends one email per recipient with
rate limiting and retries. Every run writes a timestamped log under the log
directory, ending with a summary line.

By default all sends are simulated (DRY_RUN=true); set DRY_RUN=false in the
config file or pass --dry-run=false to actually transmit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.env", "path to the key=value config file")
	rootCmd.Flags().StringVar(&recipientsPath, "recipients", "recipients.csv", "path to the recipients CSV file")
	rootCmd.Flags().StringVar(&textTmplPath, "text-template", "email_template.txt", "path to the plain text body template")
	rootCmd.Flags().StringVar(&htmlTmplPath, "html-template", "email_template.html", "path to the HTML body template")
	rootCmd.Flags().StringVar(&logDir, "log-dir", "logs", "directory for run log files")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", true, "simulate sends without opening an SMTP session")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(bulkmailer.VersionString())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Config problems must abort before the CSV is even opened.
	cfg, err := bulkmailer.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}

	runLog, err := bulkmailer.NewRunLog(logDir, os.Stderr)
	if err != nil {
		return err
	}
	defer runLog.Close()
	log := runLog.Logger

	for _, warning := range cfg.SanityWarnings() {
		log.Warn().Msg(warning)
	}

	templates, err := bulkmailer.LoadTemplateSet(cfg.Subject, textTmplPath, htmlTmplPath)
	if err != nil {
		log.Error().Err(err).Msg("cannot load templates")
		return err
	}

	recipients, err := bulkmailer.LoadRecipients(recipientsPath)
	if err != nil {
		log.Error().Err(err).Msg("cannot load recipients")
		return err
	}
	log.Info().Int("count", len(recipients)).Str("path", recipientsPath).Msg("loaded recipients")

	runner, err := bulkmailer.NewRunner(cfg, templates, bulkmailer.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Msg("cannot initialize runner")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Preflight(ctx); err != nil {
		log.Error().Err(err).Msg("SMTP preflight failed, aborting")
		return err
	}

	stats := runner.Run(ctx, recipients)
	log.Info().Msg(stats.Summary(runLog.Path))

	// A completed run exits zero even when some sends failed.
	return nil
}

// Package bulkmailer sends personalized bulk email over SMTP.
//
// Recipients are read from a CSV file with a required email column;
// ${field} placeholders in the subject and body templates are substituted
// from the remaining columns. Sends are paced to a configured per-minute
// rate, transient delivery failures are retried with exponential backoff,
// and every outcome is written to a timestamped run log that ends with a
// summary line.
//
// # Basic Usage
//
//	cfg, err := bulkmailer.LoadConfig("config.env")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	templates, err := bulkmailer.LoadTemplateSet(cfg.Subject, "email_template.txt", "email_template.html")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	recipients, err := bulkmailer.LoadRecipients("recipients.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	runner, err := bulkmailer.NewRunner(cfg, templates)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	stats := runner.Run(context.Background(), recipients)
//	fmt.Println(stats.Summary("logs/send.log"))
//
// # Features
//
//   - Dotenv-style configuration with environment variable overrides
//   - plain, STARTTLS, and implicit SSL transport modes
//   - Safe ${field} substitution with documented fallbacks
//   - Rate limiting, bounded retries, suppression lists, dry-run mode
//   - Per-run log files and OpenTelemetry spans
//
// Processing is strictly sequential: one recipient at a time, one SMTP
// session at a time.
package bulkmailer

package bulkmailer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/bulkmailer"
)

// fakeSender records sent messages and returns scripted errors per call.
type fakeSender struct {
	sent    []*bulkmailer.Message
	errs    []error
	pings   int
	pingErr error
}

func (f *fakeSender) Send(_ context.Context, msg *bulkmailer.Message) error {
	call := len(f.sent)
	f.sent = append(f.sent, msg)
	if call < len(f.errs) {
		return f.errs[call]
	}
	return nil
}

func (f *fakeSender) Ping(_ context.Context) error {
	f.pings++
	return f.pingErr
}

func (f *fakeSender) Name() string { return "fake" }

func testConfig(dryRun bool) *bulkmailer.Config {
	return &bulkmailer.Config{
		SMTP: bulkmailer.SMTPConfig{
			Host:    "smtp.example.com",
			Port:    587,
			Secure:  bulkmailer.SecureSTARTTLS,
			User:    "user@example.com",
			Pass:    "secret",
			Timeout: 5 * time.Second,
		},
		From: bulkmailer.SenderIdentity{
			Name:    "Example Team",
			Email:   "team@example.com",
			ReplyTo: "hello@example.com",
		},
		Subject:         "Hello ${name}",
		RateLimitPerMin: 60000,
		Retry: bulkmailer.RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
		DryRun: dryRun,
	}
}

func testTemplates() *bulkmailer.TemplateSet {
	return &bulkmailer.TemplateSet{
		Subject: bulkmailer.NewTemplate("subject", "Hello ${name}"),
		Text:    bulkmailer.NewTemplate("text", "Hi ${name}, greetings from ${company}."),
		HTML:    bulkmailer.NewTemplate("html", "<p>Hi ${name}</p>"),
	}
}

func recipientsFrom(rows ...[2]string) []bulkmailer.Recipient {
	var out []bulkmailer.Recipient
	for _, row := range rows {
		out = append(out, bulkmailer.Recipient{
			Email: row[0],
			Fields: map[string]string{
				"email": row[0],
				"name":  row[1],
			},
		})
	}
	return out
}

func TestRunnerDryRun(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(true), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	require.NoError(t, runner.Preflight(context.Background()))
	assert.Zero(t, sender.pings, "dry-run never opens a session")

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
		[2]string{"bob@example.com", "Bob"},
		[2]string{"carol@example.com", "Carol"},
	))

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, stats.Skipped)
	assert.Empty(t, sender.sent, "dry-run never calls the transport")
}

func TestRunnerInvalidEmailCountsAsFailed(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(true), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
		[2]string{"", "Dave"},
		[2]string{"not-an-address", "Eve"},
	))

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, sender.sent)
}

func TestRunnerDryRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "recipients.csv", `email,name,company
alice@example.com,Alice,Acme
bob@example.com,Bob,Globex
carol@example.com,,Initech
,Dave,
`)

	recipients, err := bulkmailer.LoadRecipients(csvPath)
	require.NoError(t, err)
	require.Len(t, recipients, 4)

	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(true), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipients)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, "Done. Sent: 0 | Failed: 1 | Skipped(dry-run): 3 | Log: logs/run.log",
		stats.Summary("logs/run.log"))
}

func TestRunnerSendsRenderedMessage(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), []bulkmailer.Recipient{
		{
			Email: "Alice@Example.COM",
			Fields: map[string]string{
				"email":   "Alice@Example.COM",
				"name":    "Alice",
				"company": "Acme",
			},
		},
	})

	assert.Equal(t, 1, stats.Sent)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "Alice@example.com", msg.To.Email, "domain normalized before sending")
	assert.Equal(t, "Alice", msg.To.Name)
	assert.Equal(t, "team@example.com", msg.From.Email)
	assert.Equal(t, "hello@example.com", msg.ReplyTo)
	assert.Equal(t, "Hello Alice", msg.Subject)
	assert.Equal(t, "Hi Alice, greetings from Acme.", msg.TextBody)
	assert.Equal(t, "<p>Hi Alice</p>", msg.HTMLBody)
	assert.Contains(t, msg.MessageID, "@example.com")
}

func TestRunnerNameFallback(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), []bulkmailer.Recipient{
		{Email: "carol@example.com", Fields: map[string]string{"email": "carol@example.com", "name": ""}},
	})

	assert.Equal(t, 1, stats.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Hello there", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].TextBody, "Hi there,")
}

func TestRunnerSubjectHeaderInjectionStripped(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	runner.Run(context.Background(), []bulkmailer.Recipient{
		{Email: "mallory@example.com", Fields: map[string]string{
			"email": "mallory@example.com",
			"name":  "Mallory\r\nBcc: victim@example.com",
		}},
	})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Hello MalloryBcc: victim@example.com", sender.sent[0].Subject)
}

func TestRunnerPermanentFailure(t *testing.T) {
	sender := &fakeSender{errs: []error{
		bulkmailer.NewSendError("smtp", 550, "no such user", nil),
	}}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"gone@example.com", "Ghost"},
		[2]string{"alice@example.com", "Alice"},
	))

	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, sender.sent, 2, "permanent failure gets one attempt, run continues")
}

func TestRunnerTransientRetriesThenSuccess(t *testing.T) {
	transient := bulkmailer.NewTransientSendError("smtp", 451, "greylisted", nil)
	sender := &fakeSender{errs: []error{transient, transient, nil}}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
	))

	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Len(t, sender.sent, 3, "two transient failures then success")
}

func TestRunnerTransientExhaustsRetries(t *testing.T) {
	transient := bulkmailer.NewTransientSendError("smtp", 421, "service unavailable", nil)
	sender := &fakeSender{errs: []error{transient, transient, transient}}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
	))

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, sender.sent, 3, "initial attempt plus two retries")
}

func TestRunnerSuppressedRecipient(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(),
		bulkmailer.WithSender(sender),
		bulkmailer.WithSuppressions(map[string]struct{}{"bob@example.com": {}}),
	)
	require.NoError(t, err)

	stats := runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
		[2]string{"Bob@Example.com", "Bob"},
	))

	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].To.Email)
}

func TestRunnerUnsubscribeHeaders(t *testing.T) {
	cfg := testConfig(false)
	cfg.Unsubscribe = bulkmailer.UnsubscribeConfig{
		Mailto: "unsubscribe@example.com",
		URL:    "https://example.com/u?e=${email}",
	}

	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(cfg, testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
	))

	require.Len(t, sender.sent, 1)
	headers := sender.sent[0].Headers
	assert.Equal(t, "<mailto:unsubscribe@example.com>, <https://example.com/u?e=alice@example.com>",
		headers["List-Unsubscribe"])
	assert.Equal(t, "List-Unsubscribe=One-Click", headers["List-Unsubscribe-Post"])
}

func TestRunnerNoUnsubscribeHeadersWhenUnconfigured(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
	))

	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].Headers)
}

func TestRunnerAttachment(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(),
		bulkmailer.WithSender(sender),
		bulkmailer.WithAttachment(&bulkmailer.Attachment{
			Filename: "terms.pdf",
			Data:     []byte("%PDF-1.4 fake"),
		}),
	)
	require.NoError(t, err)

	runner.Run(context.Background(), recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
	))

	require.Len(t, sender.sent, 1)
	require.Len(t, sender.sent[0].Attachments, 1)
	assert.Equal(t, "terms.pdf", sender.sent[0].Attachments[0].Filename)
}

func TestRunnerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	cancel()
	stats := runner.Run(ctx, recipientsFrom(
		[2]string{"alice@example.com", "Alice"},
		[2]string{"bob@example.com", "Bob"},
		[2]string{"carol@example.com", "Carol"},
	))

	assert.Less(t, stats.Processed(), stats.Total, "cancelled run stops early")
}

func TestRunnerPreflight(t *testing.T) {
	sender := &fakeSender{}
	runner, err := bulkmailer.NewRunner(testConfig(false), testTemplates(), bulkmailer.WithSender(sender))
	require.NoError(t, err)

	require.NoError(t, runner.Preflight(context.Background()))
	assert.Equal(t, 1, sender.pings)

	sender.pingErr = bulkmailer.NewTransientSendError("smtp", 0, "connect refused", nil)
	err = runner.Preflight(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, sender.pings)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := bulkmailer.NewRunner(nil, testTemplates())
	require.Error(t, err)

	_, err = bulkmailer.NewRunner(testConfig(true), nil)
	require.Error(t, err)
}

func TestRunStats(t *testing.T) {
	stats := &bulkmailer.RunStats{Total: 5, Sent: 2, Failed: 1, Skipped: 2}
	assert.Equal(t, 5, stats.Processed())
	assert.Equal(t, "Done. Sent: 2 | Failed: 1 | Skipped(dry-run): 2 | Log: logs/send_20260830_120000.log",
		stats.Summary("logs/send_20260830_120000.log"))
}

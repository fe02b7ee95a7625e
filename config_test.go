package bulkmailer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattiq/bulkmailer"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `SMTP_HOST=smtp.example.com
SMTP_PORT=587
SMTP_SECURE=starttls
SMTP_USER=user@example.com
SMTP_PASS=secret
FROM_NAME=Example Team
FROM_EMAIL=team@example.com
REPLY_TO=hello@example.com
SUBJECT='Hi ${name}'
RATE_LIMIT_PER_MIN=30
MAX_RETRIES=2
DRY_RUN=false
`

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.env", validConfig)

	cfg, err := bulkmailer.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, bulkmailer.SecureSTARTTLS, cfg.SMTP.Secure)
	assert.Equal(t, "user@example.com", cfg.SMTP.User)
	assert.Equal(t, "secret", cfg.SMTP.Pass)
	assert.Equal(t, "Example Team", cfg.From.Name)
	assert.Equal(t, "team@example.com", cfg.From.Email)
	assert.Equal(t, "hello@example.com", cfg.From.ReplyTo)
	assert.Equal(t, "Hi ${name}", cfg.Subject)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.env", `SMTP_HOST=smtp.example.com
SMTP_USER=user@example.com
SMTP_PASS=secret
`)

	cfg, err := bulkmailer.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, bulkmailer.SecureSTARTTLS, cfg.SMTP.Secure)
	assert.Equal(t, "Hello ${name}", cfg.Subject)
	assert.Equal(t, 60, cfg.RateLimitPerMin)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.True(t, cfg.DryRun, "dry-run must default to true")

	// FROM_EMAIL falls back to the SMTP user, REPLY_TO to the From address.
	assert.Equal(t, "user@example.com", cfg.From.Email)
	assert.Equal(t, "user@example.com", cfg.From.ReplyTo)
}

func TestLoadConfigMalformedPort(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.env", `SMTP_HOST=smtp.example.com
SMTP_PORT=not-a-port
SMTP_USER=user@example.com
SMTP_PASS=secret
`)

	_, err := bulkmailer.LoadConfig(path)
	require.Error(t, err)

	var cfgErr *bulkmailer.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SMTP_PORT", cfgErr.Key)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{
			name:    "missing host",
			content: "SMTP_USER=user@example.com\nSMTP_PASS=secret\n",
			key:     "SMTP_HOST",
		},
		{
			name:    "missing user",
			content: "SMTP_HOST=smtp.example.com\nSMTP_PASS=secret\n",
			key:     "SMTP_USER",
		},
		{
			name:    "missing pass",
			content: "SMTP_HOST=smtp.example.com\nSMTP_USER=user@example.com\n",
			key:     "SMTP_PASS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.env", tt.content)

			_, err := bulkmailer.LoadConfig(path)
			require.Error(t, err)

			var cfgErr *bulkmailer.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	base := "SMTP_HOST=smtp.example.com\nSMTP_USER=user@example.com\nSMTP_PASS=secret\n"

	tests := []struct {
		name  string
		extra string
		key   string
	}{
		{"port out of range", "SMTP_PORT=70000\n", "SMTP_PORT"},
		{"bad secure mode", "SMTP_SECURE=tlsv9\n", "SMTP_SECURE"},
		{"zero rate limit", "RATE_LIMIT_PER_MIN=0\n", "RATE_LIMIT_PER_MIN"},
		{"negative retries", "MAX_RETRIES=-1\n", "MAX_RETRIES"},
		{"bad dry run", "DRY_RUN=maybe\n", "DRY_RUN"},
		{"bad from email", "FROM_EMAIL=not-an-address\n", "FROM_EMAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.env", base+tt.extra)

			_, err := bulkmailer.LoadConfig(path)
			require.Error(t, err)

			var cfgErr *bulkmailer.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := bulkmailer.LoadConfig(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)

	var cfgErr *bulkmailer.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestConfigSanityWarnings(t *testing.T) {
	cfg := &bulkmailer.Config{
		SMTP: bulkmailer.SMTPConfig{Secure: bulkmailer.SecureSSL, Port: 587},
	}
	warnings := cfg.SanityWarnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "465")

	cfg.SMTP.Secure = bulkmailer.SecureSTARTTLS
	cfg.SMTP.Port = 465
	warnings = cfg.SanityWarnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "587")

	cfg.SMTP.Secure = bulkmailer.SecurePlain
	assert.NotEmpty(t, cfg.SanityWarnings())

	cfg.SMTP.Secure = bulkmailer.SecureSTARTTLS
	cfg.SMTP.Port = 587
	assert.Empty(t, cfg.SanityWarnings())
}

func TestConfigLoadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "terms.pdf", "%PDF-1.4 fake")

	cfg := &bulkmailer.Config{AttachmentPath: path}
	att, err := cfg.LoadAttachment()
	require.NoError(t, err)
	require.NotNil(t, att)
	assert.Equal(t, "terms.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.DetectContentType())

	cfg.AttachmentPath = ""
	att, err = cfg.LoadAttachment()
	require.NoError(t, err)
	assert.Nil(t, att)

	cfg.AttachmentPath = filepath.Join(dir, "missing.pdf")
	_, err = cfg.LoadAttachment()
	var cfgErr *bulkmailer.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ATTACHMENT_PATH", cfgErr.Key)
}

package bulkmailer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/lattiq/bulkmailer/internal/core"
)

// SecureMode selects the transport security for the SMTP session.
type SecureMode string

const (
	// SecurePlain disables TLS entirely.
	SecurePlain SecureMode = "plain"

	// SecureSTARTTLS upgrades a plaintext connection via STARTTLS.
	SecureSTARTTLS SecureMode = "starttls"

	// SecureSSL uses implicit TLS from the first byte.
	SecureSSL SecureMode = "ssl"
)

// String returns the string representation of the security mode.
func (m SecureMode) String() string {
	return string(m)
}

// Valid checks if the security mode is supported.
func (m SecureMode) Valid() bool {
	switch m {
	case SecurePlain, SecureSTARTTLS, SecureSSL:
		return true
	default:
		return false
	}
}

// SMTPConfig contains SMTP connection settings.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string

	// Port is the SMTP server port.
	Port int

	// Secure is the transport security mode.
	Secure SecureMode

	// User is the authentication username.
	User string

	// Pass is the authentication password.
	Pass string

	// Timeout is the maximum time to wait for transport operations.
	Timeout time.Duration
}

// SenderIdentity contains the sender's From and Reply-To identity.
type SenderIdentity struct {
	// Name is the display name used in the From header.
	Name string

	// Email is the From address.
	Email string

	// ReplyTo is the Reply-To address. Defaults to Email.
	ReplyTo string
}

// UnsubscribeConfig contains optional List-Unsubscribe header settings.
type UnsubscribeConfig struct {
	// Mailto is an unsubscribe mailbox, rendered as <mailto:...>.
	Mailto string

	// URL is an unsubscribe link. It may contain ${field} placeholders
	// which are substituted per recipient.
	URL string
}

// Config holds the complete configuration for a send run.
// Loaded once at process start; immutable for the run.
type Config struct {
	// SMTP contains SMTP connection settings.
	SMTP SMTPConfig

	// From contains the sender identity.
	From SenderIdentity

	// Subject is the subject template, with ${field} placeholders.
	Subject string

	// RateLimitPerMin caps real send attempts per rolling minute.
	RateLimitPerMin int

	// Retry contains retry policy configuration. MAX_RETRIES populates
	// Retry.MaxRetries; the remaining fields keep their defaults.
	Retry RetryConfig

	// AttachmentPath is an optional file attached to every message.
	AttachmentPath string

	// SuppressionsFile is an optional list of addresses never to mail,
	// one per line.
	SuppressionsFile string

	// Unsubscribe contains optional List-Unsubscribe settings.
	Unsubscribe UnsubscribeConfig

	// DryRun renders and counts but never opens an SMTP session.
	DryRun bool
}

// LoadConfig reads a key=value configuration file (dotenv format) and
// returns a validated Config. Values may be overridden by environment
// variables of the same name.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, NewConfigError("", fmt.Sprintf("failed to read config file %q", path), err)
	}

	port, err := strconv.Atoi(v.GetString("SMTP_PORT"))
	if err != nil {
		return nil, NewConfigError("SMTP_PORT", fmt.Sprintf("not an integer: %q", v.GetString("SMTP_PORT")), err)
	}

	rate, err := strconv.Atoi(v.GetString("RATE_LIMIT_PER_MIN"))
	if err != nil {
		return nil, NewConfigError("RATE_LIMIT_PER_MIN", fmt.Sprintf("not an integer: %q", v.GetString("RATE_LIMIT_PER_MIN")), err)
	}

	retries, err := strconv.Atoi(v.GetString("MAX_RETRIES"))
	if err != nil {
		return nil, NewConfigError("MAX_RETRIES", fmt.Sprintf("not an integer: %q", v.GetString("MAX_RETRIES")), err)
	}

	dryRun, err := strconv.ParseBool(v.GetString("DRY_RUN"))
	if err != nil {
		return nil, NewConfigError("DRY_RUN", fmt.Sprintf("not a boolean: %q", v.GetString("DRY_RUN")), err)
	}

	timeout, err := time.ParseDuration(v.GetString("SMTP_TIMEOUT"))
	if err != nil {
		return nil, NewConfigError("SMTP_TIMEOUT", fmt.Sprintf("not a duration: %q", v.GetString("SMTP_TIMEOUT")), err)
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = retries

	cfg := &Config{
		SMTP: SMTPConfig{
			Host:    v.GetString("SMTP_HOST"),
			Port:    port,
			Secure:  SecureMode(v.GetString("SMTP_SECURE")),
			User:    v.GetString("SMTP_USER"),
			Pass:    v.GetString("SMTP_PASS"),
			Timeout: timeout,
		},
		From: SenderIdentity{
			Name:    v.GetString("FROM_NAME"),
			Email:   v.GetString("FROM_EMAIL"),
			ReplyTo: v.GetString("REPLY_TO"),
		},
		Subject:          v.GetString("SUBJECT"),
		RateLimitPerMin:  rate,
		Retry:            retry,
		AttachmentPath:   v.GetString("ATTACHMENT_PATH"),
		SuppressionsFile: v.GetString("SUPPRESSIONS_FILE"),
		Unsubscribe: UnsubscribeConfig{
			Mailto: v.GetString("UNSUBSCRIBE_MAILTO"),
			URL:    v.GetString("UNSUBSCRIBE_URL"),
		},
		DryRun: dryRun,
	}

	// FROM_EMAIL falls back to the SMTP user, REPLY_TO to the From address.
	if cfg.From.Email == "" {
		cfg.From.Email = cfg.SMTP.User
	}
	if cfg.From.ReplyTo == "" {
		cfg.From.ReplyTo = cfg.From.Email
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_SECURE", "starttls")
	v.SetDefault("SMTP_TIMEOUT", "30s")
	v.SetDefault("SUBJECT", "Hello ${name}")
	v.SetDefault("RATE_LIMIT_PER_MIN", "60")
	v.SetDefault("MAX_RETRIES", "3")
	v.SetDefault("SUPPRESSIONS_FILE", "suppressions.txt")
	v.SetDefault("DRY_RUN", "true")
}

// Validate checks if the configuration is valid and complete.
func (c *Config) Validate() error {
	if c.SMTP.Host == "" {
		return NewConfigError("SMTP_HOST", "SMTP host is required", nil)
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return NewConfigError("SMTP_PORT", fmt.Sprintf("port %d out of range 1..65535", c.SMTP.Port), nil)
	}
	if !c.SMTP.Secure.Valid() {
		return NewConfigError("SMTP_SECURE", fmt.Sprintf("unsupported mode %q (use plain|starttls|ssl)", c.SMTP.Secure), nil)
	}
	if c.SMTP.User == "" {
		return NewConfigError("SMTP_USER", "SMTP username is required", nil)
	}
	if c.SMTP.Pass == "" {
		return NewConfigError("SMTP_PASS", "SMTP password is required", nil)
	}
	if c.SMTP.Timeout <= 0 {
		return NewConfigError("SMTP_TIMEOUT", "timeout must be greater than 0", nil)
	}

	if c.From.Email == "" {
		return NewConfigError("FROM_EMAIL", "sender address is required", nil)
	}
	if _, err := core.NormalizeEmail(c.From.Email); err != nil {
		return NewConfigError("FROM_EMAIL", fmt.Sprintf("invalid address %q", c.From.Email), err)
	}
	if c.From.ReplyTo != "" {
		if _, err := core.NormalizeEmail(c.From.ReplyTo); err != nil {
			return NewConfigError("REPLY_TO", fmt.Sprintf("invalid address %q", c.From.ReplyTo), err)
		}
	}

	if c.RateLimitPerMin < 1 {
		return NewConfigError("RATE_LIMIT_PER_MIN", "rate limit must be greater than 0", nil)
	}
	if c.Retry.MaxRetries < 0 {
		return NewConfigError("MAX_RETRIES", "max retries must not be negative", nil)
	}

	return nil
}

// SanityWarnings returns non-fatal configuration discrepancies worth
// surfacing before a run.
func (c *Config) SanityWarnings() []string {
	var warnings []string
	if c.SMTP.Secure == SecureSSL && c.SMTP.Port == 587 {
		warnings = append(warnings, "using ssl on port 587 is unusual; typical is 465")
	}
	if c.SMTP.Secure == SecureSTARTTLS && c.SMTP.Port == 465 {
		warnings = append(warnings, "using starttls on port 465 is unusual; typical is 587")
	}
	if c.SMTP.Secure == SecurePlain {
		warnings = append(warnings, "SMTP_SECURE=plain: connection is plaintext (not recommended)")
	}
	return warnings
}

// LoadAttachment reads the configured attachment into memory. Returns
// (nil, nil) when no attachment is configured. A configured but unreadable
// attachment is a fatal ConfigError.
func (c *Config) LoadAttachment() (*core.Attachment, error) {
	if c.AttachmentPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.AttachmentPath)
	if err != nil {
		return nil, NewConfigError("ATTACHMENT_PATH", fmt.Sprintf("cannot read attachment %q", c.AttachmentPath), err)
	}
	return &core.Attachment{
		Filename: filepath.Base(c.AttachmentPath),
		Data:     data,
	}, nil
}

package bulkmailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lattiq/bulkmailer/internal/core"
	"github.com/lattiq/bulkmailer/internal/smtp"
)

// RunStats accumulates per-recipient outcomes for one run. Exactly one
// outcome is recorded per processed recipient, so
// Sent+Failed+Skipped == Processed() at all times.
type RunStats struct {
	// Total is the number of recipients loaded for the run.
	Total int

	// Sent is the number of messages accepted by the SMTP server.
	Sent int

	// Failed is the number of recipients whose send failed permanently,
	// exhausted retries, or whose email was missing/invalid.
	Failed int

	// Skipped is the number of dry-run and suppressed recipients.
	Skipped int
}

func (s *RunStats) record(o Outcome) {
	switch o {
	case OutcomeSent:
		s.Sent++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Processed returns the number of recipients with a recorded outcome.
func (s *RunStats) Processed() int {
	return s.Sent + s.Failed + s.Skipped
}

// Summary formats the final summary line for the run log.
func (s *RunStats) Summary(logPath string) string {
	return fmt.Sprintf("Done. Sent: %d | Failed: %d | Skipped(dry-run): %d | Log: %s",
		s.Sent, s.Failed, s.Skipped, logPath)
}

// Runner orchestrates one send run: render, rate-limit, send-with-retry,
// tally. Recipients are processed sequentially in CSV order; the only
// suspension points are the pacing delay and the retry backoff.
type Runner struct {
	config       *Config
	sender       Sender
	templates    *TemplateSet
	limiter      *RateLimiter
	retry        *RetryManager
	suppressions map[string]struct{}
	attachment   *core.Attachment
	log          zerolog.Logger
	tracer       trace.Tracer
}

// NewRunner creates a new runner for the given configuration and templates.
// Unless overridden by options, the SMTP sender is built from the config,
// the suppression list is loaded from cfg.SuppressionsFile, and the
// attachment from cfg.AttachmentPath.
func NewRunner(cfg *Config, templates *TemplateSet, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, NewConfigError("", "configuration is required", nil)
	}
	if templates == nil {
		return nil, NewTemplateError("", "load", "template set is required", nil)
	}

	r := &Runner{
		config:    cfg,
		templates: templates,
		limiter:   NewRateLimiter(cfg.RateLimitPerMin),
		retry:     NewRetryManager(cfg.Retry),
		log:       zerolog.Nop(),
		tracer:    otel.Tracer("github.com/lattiq/bulkmailer"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.sender == nil {
		sender, err := smtp.NewSender(smtp.Settings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Secure:   cfg.SMTP.Secure.String(),
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Pass,
			Timeout:  cfg.SMTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		r.sender = sender
	}

	if r.suppressions == nil {
		suppressions, err := LoadSuppressions(cfg.SuppressionsFile)
		if err != nil {
			return nil, err
		}
		r.suppressions = suppressions
	}

	if r.attachment == nil && cfg.AttachmentPath != "" {
		attachment, err := cfg.LoadAttachment()
		if err != nil {
			return nil, err
		}
		r.attachment = attachment
	}

	return r, nil
}

// Preflight verifies that an SMTP session can be established before the run
// starts. In dry-run mode no session is ever opened, so preflight is a no-op.
func (r *Runner) Preflight(ctx context.Context) error {
	if r.config.DryRun {
		return nil
	}
	return r.sender.Ping(ctx)
}

// Run processes the recipients sequentially and returns the accumulated
// stats. Per-recipient failures never abort the run. When ctx is cancelled
// (e.g. by an interrupt signal) the run stops after the in-flight recipient
// and the stats reflect the recipients processed so far.
func (r *Runner) Run(ctx context.Context, recipients []Recipient) *RunStats {
	ctx, span := r.tracer.Start(ctx, "bulkmailer.Runner.Run",
		trace.WithAttributes(
			attribute.Int("run.recipients", len(recipients)),
			attribute.Bool("run.dry_run", r.config.DryRun),
		),
	)
	defer span.End()

	stats := &RunStats{Total: len(recipients)}
	total := len(recipients)
	used := r.templates.Placeholders()

	r.log.Info().Int("total", total).Bool("dry_run", r.config.DryRun).Msg("starting run")

	for i, rec := range recipients {
		result, err := r.processOne(ctx, i+1, total, rec, used)
		if err != nil {
			// Cancelled mid-recipient: no outcome recorded for it.
			r.log.Warn().Err(err).Msg("run interrupted")
			span.SetStatus(codes.Error, "run interrupted")
			break
		}
		stats.record(result.Outcome)

		if ctx.Err() != nil {
			r.log.Warn().Msg("run interrupted")
			span.SetStatus(codes.Error, "run interrupted")
			break
		}
	}

	span.SetAttributes(
		attribute.Int("run.sent", stats.Sent),
		attribute.Int("run.failed", stats.Failed),
		attribute.Int("run.skipped", stats.Skipped),
	)

	return stats
}

// processOne walks one recipient through the per-recipient state machine:
// Pending -> Rendered -> (Skipped | RateLimited -> Sending -> Sent|Failed).
// The returned error is non-nil only when the context was cancelled before
// an outcome was reached.
func (r *Runner) processOne(ctx context.Context, index, total int, rec Recipient, used map[string]struct{}) (core.SendResult, error) {
	ctx, span := r.tracer.Start(ctx, "bulkmailer.Runner.processRecipient",
		trace.WithAttributes(attribute.Int("recipient.index", index)),
	)
	defer span.End()

	email, err := NormalizeEmail(rec.Email)
	if err != nil {
		r.log.Warn().Str("to", rec.Email).Msgf("[%d/%d] invalid email %q, marking failed", index, total, rec.Email)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid recipient address")
		return core.SendResult{Recipient: rec.Email, Outcome: OutcomeFailed, Err: err}, nil
	}
	span.SetAttributes(attribute.String("recipient.email", email))

	if _, ok := r.suppressions[strings.ToLower(email)]; ok {
		r.log.Info().Str("to", email).Msgf("[%d/%d] suppressed, skipping", index, total)
		span.SetStatus(codes.Ok, "suppressed")
		return core.SendResult{Recipient: email, Outcome: OutcomeSkipped}, nil
	}

	fields := r.fieldsFor(index, total, rec, used)
	fields["email"] = email

	msg := r.buildMessage(email, fields)

	if r.config.DryRun {
		r.log.Info().Str("to", email).Msgf("[%d/%d] dry-run to %s (skipped sending)", index, total, email)
		span.SetStatus(codes.Ok, "dry-run")
		return core.SendResult{Recipient: email, Outcome: OutcomeSkipped}, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return core.SendResult{}, err
	}

	start := time.Now()
	attempts, err := r.retry.Do(ctx, func() error {
		return r.sender.Send(ctx, msg)
	})
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return core.SendResult{}, ctx.Err()
		}
		r.log.Error().Err(err).Str("to", email).Int("attempts", attempts).
			Msgf("[%d/%d] send to %s failed", index, total, email)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return core.SendResult{
			Recipient: email,
			Outcome:   OutcomeFailed,
			Attempts:  attempts,
			Err:       err,
			Duration:  duration,
		}, nil
	}

	r.log.Info().Str("to", email).Int("attempts", attempts).Dur("duration", duration).
		Msgf("[%d/%d] sent to %s", index, total, email)
	span.SetStatus(codes.Ok, "sent")
	return core.SendResult{
		Recipient: email,
		Outcome:   OutcomeSent,
		Attempts:  attempts,
		Duration:  duration,
	}, nil
}

// fieldsFor copies the recipient's fields and applies documented fallbacks
// for fields the templates actually use. The recipient itself stays
// untouched.
func (r *Runner) fieldsFor(index, total int, rec Recipient, used map[string]struct{}) map[string]string {
	fields := make(map[string]string, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		fields[k] = v
	}

	for key := range used {
		fallback, ok := fieldFallbacks[key]
		if !ok || fields[key] != "" {
			continue
		}
		fields[key] = fallback
		if fallback != "" {
			r.log.Warn().Msgf("[%d/%d] missing %q, using fallback %q", index, total, key, fallback)
		}
	}

	return fields
}

// buildMessage renders the templates for one recipient and assembles the
// outgoing message. Rendering happens exactly once per recipient.
func (r *Runner) buildMessage(email string, fields map[string]string) *core.Message {
	subject, text, html := r.templates.Render(fields)

	// Strip CR/LF from the rendered subject to prevent header injection.
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	msg := &core.Message{
		From:      core.Address{Name: r.config.From.Name, Email: r.config.From.Email},
		To:        core.Address{Name: fields["name"], Email: email},
		ReplyTo:   r.config.From.ReplyTo,
		Subject:   subject,
		TextBody:  text,
		HTMLBody:  html,
		MessageID: r.messageID(),
		Headers:   r.unsubscribeHeaders(fields),
	}
	if r.attachment != nil {
		msg.Attachments = []core.Attachment{*r.attachment}
	}
	return msg
}

// messageID generates a unique RFC 5322 Message-ID value using the sender
// domain.
func (r *Runner) messageID() string {
	domain := r.config.From.Email
	if _, after, found := strings.Cut(r.config.From.Email, "@"); found {
		domain = after
	}
	return fmt.Sprintf("%s@%s", uuid.NewString(), domain)
}

// unsubscribeHeaders builds the optional List-Unsubscribe headers. The
// unsubscribe URL is itself a template rendered per recipient.
func (r *Runner) unsubscribeHeaders(fields map[string]string) map[string]string {
	var entries []string
	if r.config.Unsubscribe.Mailto != "" {
		entries = append(entries, "<mailto:"+r.config.Unsubscribe.Mailto+">")
	}
	if r.config.Unsubscribe.URL != "" {
		url := NewTemplate("unsubscribe_url", r.config.Unsubscribe.URL).Render(fields)
		entries = append(entries, "<"+url+">")
	}
	if len(entries) == 0 {
		return nil
	}
	return map[string]string{
		"List-Unsubscribe":      strings.Join(entries, ", "),
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}

package bulkmailer

import (
	"time"

	"github.com/rs/zerolog"
)

// Option is a functional option for configuring the runner.
type Option func(*Runner)

// WithSender injects a transport, replacing the SMTP sender built from the
// configuration. Used for testing and for alternative transports.
func WithSender(sender Sender) Option {
	return func(r *Runner) {
		r.sender = sender
	}
}

// WithLogger sets the run logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// WithRateLimiter replaces the pacing limiter built from RATE_LIMIT_PER_MIN.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(r *Runner) {
		r.limiter = limiter
	}
}

// WithRetryManager replaces the retry controller built from the retry
// configuration.
func WithRetryManager(retry *RetryManager) Option {
	return func(r *Runner) {
		r.retry = retry
	}
}

// WithSuppressions injects a suppression set, replacing the one loaded from
// SUPPRESSIONS_FILE. Keys are matched case-insensitively against normalized
// recipient addresses.
func WithSuppressions(suppressed map[string]struct{}) Option {
	return func(r *Runner) {
		r.suppressions = suppressed
	}
}

// WithAttachment injects the attachment, replacing the one loaded from
// ATTACHMENT_PATH.
func WithAttachment(attachment *Attachment) Option {
	return func(r *Runner) {
		r.attachment = attachment
	}
}

// WithPacingJitter adds a random delay in [0, d) to each pacing wait so
// sends do not leave a perfectly regular cadence.
func WithPacingJitter(d time.Duration) Option {
	return func(r *Runner) {
		r.limiter.SetJitter(d)
	}
}

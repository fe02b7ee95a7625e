package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"strings"
	"time"
)

// Sender delivers a single rendered message over the configured transport.
type Sender interface {
	// Send transmits one message. The returned error, if any, is a
	// *SendError classified as transient or permanent.
	Send(ctx context.Context, msg *Message) error

	// Ping verifies that a transport session can be established without
	// sending anything. Used for preflight checks before a run.
	Ping(ctx context.Context) error

	// Name returns the transport name for logging.
	Name() string
}

// Address represents an email address with optional display name.
type Address struct {
	Name  string `json:"name"`  // Display name (optional)
	Email string `json:"email"` // Email address (required)
}

// String returns the formatted email address.
// If Name is provided, returns "Name <email@domain.com>"
// Otherwise returns just "email@domain.com"
func (a Address) String() string {
	if a.Name != "" {
		return mime.QEncoding.Encode("UTF-8", a.Name) + " <" + a.Email + ">"
	}
	return a.Email
}

// Valid checks if the address has a valid email format.
func (a Address) Valid() bool {
	if a.Email == "" {
		return false
	}
	_, err := mail.ParseAddress(a.String())
	return err == nil
}

// NormalizeEmail parses and normalizes a bare email address: surrounding
// whitespace is trimmed and the domain part is lowercased. Returns an error
// if the address is empty or does not parse.
func NormalizeEmail(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", &ValidationError{Field: "email", Message: "address is empty"}
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", &ValidationError{Field: "email", Message: "invalid address", Value: addr}
	}
	local, domain, found := strings.Cut(parsed.Address, "@")
	if !found || local == "" || domain == "" {
		return "", &ValidationError{Field: "email", Message: "invalid address", Value: addr}
	}
	return local + "@" + strings.ToLower(domain), nil
}

// Attachment represents a file attachment included with every message.
type Attachment struct {
	// Filename is the name of the file as it will appear in the email.
	Filename string

	// ContentType is the MIME content type of the file.
	// If empty, it will be detected from the filename extension.
	ContentType string

	// Data contains the file content.
	Data []byte
}

// DetectContentType attempts to detect the content type from the filename.
func (a *Attachment) DetectContentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}

	ext := strings.ToLower(filepath.Ext(a.Filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".csv":
		return "text/csv"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Message represents one fully rendered email, ready for transmission.
// Exactly one recipient per message; the run orchestrator builds one
// Message per CSV row.
type Message struct {
	From        Address           `json:"from"`        // Sender address
	To          Address           `json:"to"`          // The single recipient
	ReplyTo     string            `json:"reply_to"`    // Reply-To address (optional)
	Subject     string            `json:"subject"`     // Rendered subject
	HTMLBody    string            `json:"html_body"`   // Rendered HTML body
	TextBody    string            `json:"text_body"`   // Rendered plain text body
	MessageID   string            `json:"message_id"`  // RFC 5322 Message-ID value
	Headers     map[string]string `json:"headers"`     // Custom headers
	Attachments []Attachment      `json:"attachments"` // File attachments
}

// Validate checks if the message has valid structure and required fields.
func (m *Message) Validate() error {
	if !m.From.Valid() {
		return &ValidationError{Field: "from", Message: "invalid or missing sender address"}
	}

	if !m.To.Valid() {
		return &ValidationError{Field: "to", Message: "invalid or missing recipient address"}
	}

	if strings.TrimSpace(m.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject is required"}
	}

	if strings.TrimSpace(m.TextBody) == "" && strings.TrimSpace(m.HTMLBody) == "" {
		return &ValidationError{Field: "body", Message: "either text or HTML body is required"}
	}

	return nil
}

// HasAttachments returns true if the message has any attachments.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Outcome is the terminal state of a single recipient's send attempt.
type Outcome int

const (
	// OutcomeSent indicates the message was accepted by the SMTP server.
	OutcomeSent Outcome = iota

	// OutcomeFailed indicates the send failed permanently or exhausted retries.
	OutcomeFailed

	// OutcomeSkipped indicates no transmission was attempted (dry-run or
	// suppressed address).
	OutcomeSkipped
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SendResult records the final outcome for one recipient.
// Every recipient yields exactly one SendResult.
type SendResult struct {
	// Recipient is the normalized recipient address, or the raw CSV value
	// when normalization failed.
	Recipient string

	// Outcome is the terminal state.
	Outcome Outcome

	// Attempts is the number of transmission attempts made (0 for skips).
	Attempts int

	// Err holds the final error for failed outcomes.
	Err error

	// Duration is the wall-clock time spent on transmission attempts.
	Duration time.Duration
}

// ValidationError represents a validation error with specific field information.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string

	// Value is the invalid value (optional).
	Value interface{}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error in %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// SendError represents a classified delivery failure from the transport.
type SendError struct {
	// Transport is the name of the transport that generated the error.
	Transport string

	// Code is the SMTP reply code when one was received, zero otherwise.
	Code int

	// Message is the error message from the transport.
	Message string

	// IsRetryable indicates whether the error can be retried.
	IsRetryable bool

	// IsTemporary indicates whether the error is temporary.
	IsTemporary bool

	// Cause is the underlying error that caused this send error.
	Cause error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("transport %s error (code %d): %s", e.Transport, e.Code, e.Message)
	}
	return fmt.Sprintf("transport %s error: %s", e.Transport, e.Message)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Cause
}

// Retryable implements RetryableError for SendError.
func (e *SendError) Retryable() bool {
	return e.IsRetryable
}

// Temporary implements TemporaryError for SendError.
func (e *SendError) Temporary() bool {
	return e.IsTemporary
}

// RetryableError interface indicates whether an error can be retried.
type RetryableError interface {
	Retryable() bool
}

// TemporaryError interface indicates whether an error is temporary.
type TemporaryError interface {
	Temporary() bool
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// IsTemporary reports whether err is a temporary condition.
func IsTemporary(err error) bool {
	var te TemporaryError
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

// Constructor functions for errors

// NewSendError creates a new permanent send error.
func NewSendError(transport string, code int, message string, cause error) *SendError {
	return &SendError{
		Transport:   transport,
		Code:        code,
		Message:     message,
		IsRetryable: false,
		IsTemporary: false,
		Cause:       cause,
	}
}

// NewTransientSendError creates a new send error that should be retried.
func NewTransientSendError(transport string, code int, message string, cause error) *SendError {
	return &SendError{
		Transport:   transport,
		Code:        code,
		Message:     message,
		IsRetryable: true,
		IsTemporary: true,
		Cause:       cause,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithValue creates a new validation error with a value.
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

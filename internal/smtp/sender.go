// Package smtp implements the SMTP transport on top of wneessen/go-mail.
// One session is dialed per send; failures are classified as transient or
// permanent so the retry controller can decide whether to try again.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/textproto"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/lattiq/bulkmailer/internal/core"
)

// SecureMode selects the transport security for the SMTP session.
const (
	SecurePlain    = "plain"
	SecureSTARTTLS = "starttls"
	SecureSSL      = "ssl"
)

// Settings holds SMTP connection parameters.
type Settings struct {
	Host     string
	Port     int
	Secure   string // plain | starttls | ssl
	Username string
	Password string
	Timeout  time.Duration
}

// Sender implements core.Sender over SMTP.
type Sender struct {
	settings Settings
}

// NewSender creates a new SMTP sender and validates the settings.
func NewSender(settings Settings) (*Sender, error) {
	if settings.Host == "" {
		return nil, core.NewValidationError("host", "SMTP host is required")
	}
	if settings.Port < 1 || settings.Port > 65535 {
		return nil, core.NewValidationErrorWithValue("port", "port must be in 1..65535", settings.Port)
	}
	switch settings.Secure {
	case SecurePlain, SecureSTARTTLS, SecureSSL:
	default:
		return nil, core.NewValidationErrorWithValue("secure", "unsupported security mode", settings.Secure)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	return &Sender{settings: settings}, nil
}

// Name returns the transport name.
func (s *Sender) Name() string {
	return "smtp"
}

// Ping dials the server per the configured security mode and closes the
// session without sending. Authentication is exercised as part of the dial.
func (s *Sender) Ping(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return classify(err)
	}
	return client.Close()
}

// Send transmits one message over a fresh SMTP session.
func (s *Sender) Send(ctx context.Context, msg *core.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	m, err := buildMessage(msg)
	if err != nil {
		return core.NewSendError(s.Name(), 0, "failed to build message", err)
	}

	client, err := s.client()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err)
	}
	return nil
}

// client constructs a go-mail client for the configured security mode.
func (s *Sender) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.settings.Port),
		mail.WithTimeout(s.settings.Timeout),
	}

	if s.settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.settings.Username),
			mail.WithPassword(s.settings.Password),
		)
	}

	switch s.settings.Secure {
	case SecureSSL:
		opts = append(opts, mail.WithSSL())
	case SecureSTARTTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(s.settings.Host, opts...)
	if err != nil {
		return nil, core.NewSendError(s.Name(), 0, "failed to create SMTP client", err)
	}
	return client, nil
}

// buildMessage converts a core.Message into a go-mail multipart message.
func buildMessage(msg *core.Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.FromFormat(msg.From.Name, msg.From.Email); err != nil {
		return nil, err
	}
	if err := m.AddToFormat(msg.To.Name, msg.To.Email); err != nil {
		return nil, err
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, err
		}
	}

	m.Subject(msg.Subject)
	if msg.MessageID != "" {
		m.SetMessageIDWithValue(msg.MessageID)
	}
	for key, value := range msg.Headers {
		m.SetGenHeader(mail.Header(key), value)
	}

	// alternative parts: text + html
	if msg.TextBody != "" {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
		}
	} else {
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	}

	for _, att := range msg.Attachments {
		err := m.AttachReader(att.Filename, bytes.NewReader(att.Data),
			mail.WithFileContentType(mail.ContentType(att.DetectContentType())))
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// classify maps a transport error to a *core.SendError. 4xx replies and
// connection-level failures are transient; 5xx replies and authentication
// failures are permanent. Errors that carry no SMTP reply code default to
// transient, since a broken or dropped session is usually recoverable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 400 && tpErr.Code < 500 {
			return core.NewTransientSendError("smtp", tpErr.Code, tpErr.Msg, err)
		}
		return core.NewSendError("smtp", tpErr.Code, tpErr.Msg, err)
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return core.NewTransientSendError("smtp", 0, sendErr.Error(), err)
		}
		return core.NewSendError("smtp", 0, sendErr.Error(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewTransientSendError("smtp", 0, "connection timeout", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return core.NewTransientSendError("smtp", 0, "connection failure", err)
	}

	return core.NewTransientSendError("smtp", 0, err.Error(), err)
}

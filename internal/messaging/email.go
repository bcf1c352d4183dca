package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPOpts holds configuration for the SMTP email sender.
type SMTPOpts struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// SMTPOption defines a configuration option for the SMTP sender.
type SMTPOption func(*SMTPOpts)

// WithSMTPServer sets the SMTP host and port.
func WithSMTPServer(host string, port int) SMTPOption {
	return func(o *SMTPOpts) { o.Host = host; o.Port = port }
}

// WithSMTPAuth sets the SMTP credentials.
func WithSMTPAuth(username, password string) SMTPOption {
	return func(o *SMTPOpts) { o.Username = username; o.Password = password }
}

// WithSMTPFrom sets the sender display name and address.
func WithSMTPFrom(name, email string) SMTPOption {
	return func(o *SMTPOpts) { o.FromName = name; o.FromEmail = email }
}

// SMTPSender delivers email over SMTP with STARTTLS when the server offers it.
type SMTPSender struct {
	opts SMTPOpts
}

// NewSMTPSender creates an SMTP email sender. Host, credentials and a from
// address are required.
func NewSMTPSender(opts ...SMTPOption) (*SMTPSender, error) {
	cfg := SMTPOpts{Port: 587}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host not set")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("SMTP credentials not set")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("SMTP from address not set")
	}
	slog.Debug("SMTPSender configured", "host", cfg.Host, "port", cfg.Port, "from", cfg.FromEmail)
	return &SMTPSender{opts: cfg}, nil
}

// Send delivers a plain-text email to recipient.
func (s *SMTPSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.opts.FromEmail
	if s.opts.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.opts.FromName, s.opts.FromEmail)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	auth := smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
	if err := smtp.SendMail(addr, auth, s.opts.FromEmail, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", recipient, err)
	}
	return nil
}

// Package notify delivers one-way notifications to account holders. Callers
// treat delivery as best effort: a failed send is reported, never retried.
package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-review-catalog/internal/config"
)

// FromConfig returns an SMTP sender when a host is configured and a
// LogSender otherwise.
func FromConfig(cfg config.MailConfig, lg zerolog.Logger) (Sender, error) {
	if cfg.SMTPHost == "" {
		return LogSender{Logger: lg}, nil
	}
	s, err := NewSMTPSender(SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Sender delivers a plain-text message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the logger instead of delivering them. It is
// the default outside of production.
type LogSender struct {
	Logger zerolog.Logger
}

// Send logs the message. The body is logged at debug level only since it
// carries the confirmation code.
func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("notification")
	s.Logger.Debug().Str("to", to).Str("body", body).Msg("notification body")
	return nil
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail over SMTP with optional PLAIN auth.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 25
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send delivers one message. ctx is checked before dialing; net/smtp does not
// accept a context.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var a smtp.Auth
	if s.cfg.Username != "" {
		a = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, a, s.cfg.From, []string{to}, buildMessage(s.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// buildMessage renders a text/plain message. Non-ASCII subjects are
// RFC 2047 encoded.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

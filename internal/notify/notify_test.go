package notify

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-review-catalog/internal/config"
)

func TestLogSender_DoesNotLogBodyAtInfo(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}
	if err := s.Send(context.Background(), "a@example.com", "Your code", "code: 123"); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "a@example.com") {
		t.Fatalf("expected recipient in log, got %s", out)
	}
	if strings.Contains(out, "123") {
		t.Fatalf("body must not be logged at info: %s", out)
	}
}

func TestNewSMTPSender_Validation(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
	s, err := NewSMTPSender(SMTPConfig{Host: "mail", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if s.cfg.Port != 25 {
		t.Fatalf("default port = %d; want 25", s.cfg.Port)
	}
}

func TestSMTPSender_Send(t *testing.T) {
	s, _ := NewSMTPSender(SMTPConfig{Host: "mail", Port: 2525, From: "noreply@example.com", Username: "u", Password: "p"})

	var gotAddr string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		if a == nil {
			t.Fatalf("expected auth when username is set")
		}
		return nil
	}
	if err := s.Send(context.Background(), "a@example.com", "Hi\r\nBcc: x", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail:2525" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if strings.Contains(string(gotMsg), "\r\nBcc:") {
		t.Fatalf("header injection not neutralized: %q", gotMsg)
	}

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("boom") }
	if err := s.Send(context.Background(), "a@example.com", "s", "b"); err == nil {
		t.Fatalf("expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "a@example.com", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildMessage_EncodesSubject(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "a@example.com", "Código de confirmação", "código: 123"))
	if !strings.Contains(msg, "\r\nSubject: =?utf-8?q?") {
		t.Fatalf("subject not encoded: %q", msg)
	}
	if strings.Contains(msg, "Subject: Código") {
		t.Fatalf("raw utf-8 in subject header: %q", msg)
	}
	if !strings.Contains(msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\ncódigo: 123") {
		t.Fatalf("body or content type missing: %q", msg)
	}

	plain := string(buildMessage("noreply@example.com", "a@example.com", "Your code", "b"))
	if !strings.Contains(plain, "\r\nSubject: Your code\r\n") {
		t.Fatalf("ascii subject should pass through: %q", plain)
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(config.MailConfig{From: "no-reply@example.com"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("log sender: %v", err)
	}
	if _, ok := s.(LogSender); !ok {
		t.Fatalf("want LogSender without SMTP host, got %T", s)
	}

	s, err = FromConfig(config.MailConfig{From: "no-reply@example.com", SMTPHost: "mail.local", SMTPPort: 2525}, zerolog.Nop())
	if err != nil {
		t.Fatalf("smtp sender: %v", err)
	}
	smtpSender, ok := s.(*SMTPSender)
	if !ok {
		t.Fatalf("want *SMTPSender, got %T", s)
	}
	if smtpSender.cfg.Port != 2525 || smtpSender.cfg.Host != "mail.local" {
		t.Fatalf("unexpected cfg: %+v", smtpSender.cfg)
	}

	if _, err := FromConfig(config.MailConfig{SMTPHost: "mail.local"}, zerolog.Nop()); err == nil {
		t.Fatalf("missing from address should fail")
	}
}

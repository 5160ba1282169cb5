package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/config"
)

// CodeSender delivers a sign-in PIN to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, email, pin string, expiresIn time.Duration) error
}

// codeEmailParams is passed as data when executing the email template.
type codeEmailParams struct {
	Email      string
	Code       string
	Expiration time.Duration
	SenderName string
}

// DefaultCodeTemplate is the plain-text body of the sign-in email.
const DefaultCodeTemplate = `Hi {{.Email}},

Your sign-in code is:

{{.Code}}

The code is valid for {{printf "%.f" .Expiration.Minutes}} minutes.

If you did not request a code, you can ignore this email.

{{.SenderName}}
`

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPCodeSender sends codes through an SMTP relay.
type SMTPCodeSender struct {
	cfg      config.MailConfig
	tmpl     *template.Template
	sendMail sendMailFunc
}

// NewSMTPCodeSender parses the email template and returns a sender.
func NewSMTPCodeSender(cfg config.MailConfig, body string) (*SMTPCodeSender, error) {
	if body == "" {
		body = DefaultCodeTemplate
	}
	tmpl, err := template.New("code").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse code template: %w", err)
	}
	return &SMTPCodeSender{cfg: cfg, tmpl: tmpl, sendMail: smtp.SendMail}, nil
}

// SendCode renders the template and hands the message to the relay.
func (s *SMTPCodeSender) SendCode(ctx context.Context, email, pin string, expiresIn time.Duration) error {
	from := strings.TrimSpace(s.cfg.From)
	if s.cfg.Host == "" || s.cfg.Port == 0 || from == "" {
		return errors.New("smtp sender is not configured")
	}
	if strings.ContainsAny(email, "\r\n") {
		return errors.New("invalid recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := s.tmpl.Execute(&body, codeEmailParams{
		Email:      email,
		Code:       pin,
		Expiration: expiresIn,
		SenderName: from,
	}); err != nil {
		return fmt.Errorf("render code email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := []byte("From: " + from + "\r\n" +
		"To: " + email + "\r\n" +
		"Subject: " + s.cfg.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body.String())
	return s.sendMail(addr, auth, from, []string{email}, msg)
}

// LogCodeSender writes codes to the log instead of sending them. Development only.
type LogCodeSender struct {
	logger *zap.Logger
}

// NewLogCodeSender returns a sender that logs the code.
func NewLogCodeSender(logger *zap.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

// SendCode logs the email and code.
func (s *LogCodeSender) SendCode(_ context.Context, email, pin string, expiresIn time.Duration) error {
	s.logger.Info("sign-in code",
		zap.String("email", email),
		zap.String("code", pin),
		zap.Duration("expires_in", expiresIn))
	return nil
}

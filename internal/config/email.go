package config

import (
	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer sends one HTML email.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

func NewResendMailer(apiKey, from string, logger *zap.Logger) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from, logger: logger}
}

func (m *ResendMailer) SendEmail(to, subject, body string) error {
	sent, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return errors.Wrap(err, "send email via resend")
	}
	m.logger.Debug("Email sent", zap.String("to", to), zap.String("id", sent.Id))
	return nil
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func NewSMTPMailer(host string, port int, user, password, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, user, password), from: from, logger: logger}
}

func (m *SMTPMailer) SendEmail(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return errors.Wrap(err, "send email via smtp")
	}
	m.logger.Debug("Email sent", zap.String("to", to))
	return nil
}

// NewMailer picks the configured email channel. It returns nil when email is off.
func NewMailer(s *Settings, logger *zap.Logger) Mailer {
	switch s.EmailProvider {
	case "resend":
		logger.Info("Email channel enabled", zap.String("provider", "resend"))
		return NewResendMailer(s.ResendAPIKey, s.FromEmail, logger)
	case "smtp":
		logger.Info("Email channel enabled", zap.String("provider", "smtp"))
		return NewSMTPMailer(s.SMTPHost, s.SMTPPort, s.SMTPUser, s.SMTPPassword, s.FromEmail, logger)
	}
	return nil
}

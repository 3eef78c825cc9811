// Package notify sends the notification mails to donors, customers and the organization
package notify

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"gopkg.in/gomail.v2"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/metrics"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

// Message is a plain text mail
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers mails via an SMTP server
type SMTPMailer struct {
	dialer *gomail.Dialer
	sender string
	logger *logrus.Entry
}

// NewMailer creates the mailer for the given configuration. Without an SMTP host, a mailer that only logs the
// messages is returned
func NewMailer(cfg models.MailConfig, logger *logrus.Entry) Mailer {
	if cfg.Host == "" {
		logger.Warn("No SMTP host configured - notification mails are not sent")
		return &DisabledMailer{logger: logger}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		sender: cfg.Sender,
		logger: logger,
	}
}

// Send delivers the message
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	message := gomail.NewMessage()
	message.SetHeader("From", m.sender)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Body)
	if err := m.dialer.DialAndSend(message); err != nil {
		metrics.MailsSentTotal.WithLabelValues("failure").Inc()
		m.logger.WithError(err).WithField(log.FldMailTo, msg.To).Error("Failed to send mail")
		return errors.Wrap(err, "failed to send mail")
	}
	metrics.MailsSentTotal.WithLabelValues("success").Inc()
	m.logger.WithField(log.FldMailTo, msg.To).Debug("Mail sent")
	return nil
}

// DisabledMailer drops all messages
type DisabledMailer struct {
	logger *logrus.Entry
}

// Send logs the message without delivering it
func (m *DisabledMailer) Send(ctx context.Context, msg Message) error {
	metrics.MailsSentTotal.WithLabelValues("dropped").Inc()
	m.logger.WithField(log.FldMailTo, msg.To).WithField("subject", msg.Subject).Info("Mail delivery disabled - dropping mail")
	return nil
}

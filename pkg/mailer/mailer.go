// Package mailer sends plain-text notification email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/logger"
)

// SendFunc matches net/smtp.SendMail, injected for tests.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends mail through one SMTP relay.
type Mailer struct {
	addr     string
	username string
	password string
	host     string
	from     string
	send     SendFunc
}

// New builds a mailer from configuration.
func New(cfg config.MailerConfig) *Mailer {
	return &Mailer{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		username: cfg.Username,
		password: cfg.Password,
		host:     cfg.Host,
		from:     cfg.From,
		send:     smtp.SendMail,
	}
}

// Send delivers one message. Recipient, subject, and message are all
// required; a blank field fails before anything touches the network.
func (m *Mailer) Send(ctx context.Context, recipient, subject, message string) error {
	var missing []string
	if strings.TrimSpace(recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mailer: missing required fields: %s", strings.Join(missing, ", "))
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mailer: send interrupted: %w", err)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, recipient, subject, message)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := m.send(m.addr, auth, m.from, []string{recipient}, []byte(body)); err != nil {
		return fmt.Errorf("mailer: failed to send to %s: %w", recipient, err)
	}
	logger.Info("Email sent", "recipient", recipient, "subject", subject)
	return nil
}

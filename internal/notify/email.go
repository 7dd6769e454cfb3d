package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"shopwatch/internal/pipeline"
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Server   string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

type sendFunc func(e *email.Email, addr string, a smtp.Auth) error

// Email sends reports as HTML mail.
type Email struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewEmail creates an Email sender for cfg.
func NewEmail(cfg SMTPConfig) *Email {
	return &Email{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

// Subject returns the mail subject for report.
func Subject(report *pipeline.Report) string {
	n := report.Counts().Reportable()
	if n == 1 {
		return "shopwatch: 1 update"
	}
	return fmt.Sprintf("shopwatch: %d updates", n)
}

// Send mails the report. Servers that do not offer AUTH are retried
// without credentials.
func (m *Email) Send(ctx context.Context, report *pipeline.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("shopwatch <%s>", m.cfg.From)
	mail.To = m.cfg.To
	mail.Subject = Subject(report)
	mail.HTML = []byte("<html><body>" + report.Text + "</body></html>")

	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Server)
	}

	err := m.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

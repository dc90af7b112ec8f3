package infra

import (
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"

	"eventpos/internal/config"

	"github.com/jordan-wright/email"
)

// ErrMailerDisabled is returned when no SMTP host is configured.
var ErrMailerDisabled = errors.New("mailer: SMTP_HOST not configured")

// Mailer sends alert and report emails through SMTP. Every send goes through
// the circuit breaker when one is attached.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	cb       *CircuitBreaker
	send     func(e *email.Email, addr string, auth smtp.Auth) error
}

// IsMessageRejected reports whether the relay answered with a permanent 5xx
// reply, such as an unknown recipient. Resending the same message cannot
// succeed, but the relay itself is reachable.
func IsMessageRejected(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600
}

func NewMailer(cfg *config.Config, cb *CircuitBreaker) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		cb:       cb,
		send:     func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// BreakerState is exposed on /health.
func (m *Mailer) BreakerState() CBState {
	if m.cb == nil {
		return CBClosed
	}
	return m.cb.State()
}

// Send delivers a plain-text message with optional file attachments.
func (m *Mailer) Send(to, subject, body string, attachments ...string) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	e, err := m.newMessage(to, subject, body, attachments)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	deliver := func() error { return m.send(e, m.addr, auth) }
	if m.cb == nil {
		return deliver()
	}
	return m.cb.Execute(deliver)
}

func (m *Mailer) newMessage(to, subject, body string, attachments []string) (*email.Email, error) {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	for _, path := range attachments {
		if path == "" {
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", path, err)
		}
	}
	return e, nil
}

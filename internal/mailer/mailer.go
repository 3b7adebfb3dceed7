package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Mailer sends attendee notification emails over SMTP.
type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SendAttendeeConfirmation emails a registration confirmation for an event.
func (m *Mailer) SendAttendeeConfirmation(eventTitle, attendeeName, recipientEmail string) error {
	subject := fmt.Sprintf("You are registered for %s", eventTitle)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour registration for \"%s\" has been received. Your ticket will be available at the venue.\n\nSee you there!",
		attendeeName, eventTitle,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, recipientEmail, subject, body,
	)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{recipientEmail}, []byte(msg)); err != nil {
		m.log.Warn().Msgf("failed to send email to %s: %v", recipientEmail, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("confirmation email sent to %s", recipientEmail)
	return nil
}
